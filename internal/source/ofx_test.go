package source

import (
	"context"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-shreya/subscription-manager/internal/common"
)

const sampleOFXStatement = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250301120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>INR
<BANKACCTFROM>
<BANKID>987654321
<ACCTID>acc-checking
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250228120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250105120000[0:GMT]
<TRNAMT>-649.00
<FITID>2025010501
<NAME>NETFLIX.COM
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250204120000[0:GMT]
<TRNAMT>-649.00
<FITID>2025020401
<NAME>NETFLIX.COM
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250110120000[0:GMT]
<TRNAMT>-1499.00
<FITID>2025011001
<NAME>POS PURCHASE BIG BAZAAR
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>25000.00
<DTASOF>20250228120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>2
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>INR
<CCACCTFROM>
<ACCTID>cc-4242
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250228120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250115120000[0:GMT]
<TRNAMT>-119.00
<FITID>CC2025011501
<NAME>SPOTIFY
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-119.00
<DTASOF>20250228120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestOFXTransactionSourceParsesStatement(t *testing.T) {
	path := writeFixture(t, "statement.qfx", sampleOFXStatement)

	src, err := NewOFXTransactionSource(path)
	require.NoError(t, err)

	accounts, err := src.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-checking", "cc-4242"}, accounts)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txns, err := src.Transactions(context.Background(), "acc-checking", start, end)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	// Debits come back as positive amounts, date ordered
	assert.Equal(t, "2025010501", txns[0].ID)
	assert.Equal(t, "NETFLIX.COM", txns[0].Merchant)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("649")))
	assert.True(t, txns[0].Date.Before(txns[1].Date))

	// Card-processing prefixes are stripped from NAME fields
	assert.Equal(t, "BIG BAZAAR", txns[1].Merchant)

	cc, err := src.Transactions(context.Background(), "cc-4242", start, end)
	require.NoError(t, err)
	require.Len(t, cc, 1)
	assert.Equal(t, "SPOTIFY", cc[0].Merchant)
	assert.True(t, cc[0].Amount.Equal(decimal.RequireFromString("119")))
}

func TestOFXTransactionSourceWindowFilter(t *testing.T) {
	path := writeFixture(t, "statement.qfx", sampleOFXStatement)

	src, err := NewOFXTransactionSource(path)
	require.NoError(t, err)

	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txns, err := src.Transactions(context.Background(), "acc-checking", start, end)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "2025020401", txns[0].ID)
}

func TestOFXTransactionSourceMissingFile(t *testing.T) {
	_, err := NewOFXTransactionSource("/nonexistent/statement.qfx")
	assert.ErrorIs(t, err, common.ErrSourceUnavailable)
}

func TestOFXTransactionSourceInvalidData(t *testing.T) {
	path := writeFixture(t, "statement.qfx", "not an OFX statement")

	_, err := NewOFXTransactionSource(path)
	assert.Error(t, err)
}

func TestOFXMerchantName(t *testing.T) {
	tests := []struct {
		name string
		tx   ofxgo.Transaction
		want string
	}{
		{
			name: "payee wins over name",
			tx: ofxgo.Transaction{
				Name:  ofxgo.String("DEBIT"),
				Payee: &ofxgo.Payee{Name: ofxgo.String("Netflix")},
			},
			want: "Netflix",
		},
		{
			name: "strips POS prefix",
			tx:   ofxgo.Transaction{Name: ofxgo.String("POS PURCHASE STARBUCKS")},
			want: "STARBUCKS",
		},
		{
			name: "generic name falls back to memo",
			tx: ofxgo.Transaction{
				Name: ofxgo.String("DEBIT"),
				Memo: ofxgo.String("SPOTIFY PREMIUM"),
			},
			want: "SPOTIFY PREMIUM",
		},
		{
			name: "clean name kept as is",
			tx:   ofxgo.Transaction{Name: ofxgo.String("  NETFLIX.COM  ")},
			want: "NETFLIX.COM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ofxMerchantName(tt.tx))
		})
	}
}
