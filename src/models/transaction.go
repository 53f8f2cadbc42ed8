package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction amounts follow Plaid's sign: positive is money leaving the account.
type Transaction struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	AccountID          *uuid.UUID      `json:"account_id"`
	PlaidTransactionID *string         `json:"plaid_transaction_id,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Name               string          `json:"name"`
	MerchantName       *string         `json:"merchant_name"`
	AccountName        string          `json:"account_name,omitempty"`
	Category           string          `json:"category"`
	Date               time.Time       `json:"date"`
	Pending            bool            `json:"pending"`
	RoundupSwept       bool            `json:"roundup_swept"`
	CreatedAt          time.Time       `json:"created_at"`
}

type TransactionFilter struct {
	AccountID *uuid.UUID
	Category  string
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}
