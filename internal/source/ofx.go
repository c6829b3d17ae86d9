package source

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
)

// OFXTransactionSource serves bank transactions from a local OFX/QFX
// statement export, the download format most banks still offer. Debit and
// credit card statements in the same file both contribute accounts.
type OFXTransactionSource struct {
	transactionTable
}

// NewOFXTransactionSource parses an OFX/QFX file into a transaction source.
func NewOFXTransactionSource(path string) (*OFXTransactionSource, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read OFX statement: %v", common.ErrSourceUnavailable, err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX statement %s: %w", path, err)
	}

	var txns []model.BankTransaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			txns = append(txns, statementTransactions(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			txns = append(txns, statementTransactions(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	slog.Info("Parsed OFX statement",
		"path", path,
		"transactions", len(txns))

	return &OFXTransactionSource{newTransactionTable(txns)}, nil
}

func statementTransactions(list *ofxgo.TransactionList, accountID string) []model.BankTransaction {
	if list == nil {
		return nil
	}

	out := make([]model.BankTransaction, 0, len(list.Transactions))
	for _, tx := range list.Transactions {
		out = append(out, model.BankTransaction{
			ID:        string(tx.FiTID),
			AccountID: accountID,
			Merchant:  ofxMerchantName(tx),
			// OFX reports debits as negative amounts
			Amount: decimal.NewFromBigRat(&tx.TrnAmt.Rat, 2).Abs(),
			Date:   tx.DtPosted.Time,
		})
	}
	return out
}

var (
	ofxSeverityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	ofxOpenTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX repairs the SGML quirks bank exports commonly carry before
// the strict parser sees them: leading whitespace, mixed-case severities,
// and opening tags missing their closing bracket.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = ofxSeverityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	return ofxOpenTagRe.ReplaceAllString(content, "$1>")
}

// ofxNamePrefixes are card-processing prefixes banks prepend to the
// merchant in NAME fields.
var ofxNamePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var ofxGenericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// ofxMerchantName extracts the cleanest merchant string a statement entry
// offers. PAYEE wins when present; a generic NAME falls back to MEMO.
func ofxMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && ofxGenericNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(tx.Memo))
	}

	for _, prefix := range ofxNamePrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(name)
}

var _ TransactionSource = (*OFXTransactionSource)(nil)
