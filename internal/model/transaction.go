package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction represents a single charge from a connected bank account.
type BankTransaction struct {
	Date      time.Time
	ID        string
	AccountID string
	Merchant  string
	Amount    decimal.Decimal
}

// EmailMessage is one raw message yielded by an email source scan.
type EmailMessage struct {
	Date    time.Time
	ID      string
	Subject string
	From    string
	Body    string
}
