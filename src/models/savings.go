package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Goal struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *time.Time      `json:"target_date"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Pot is a named savings bucket that round-up sweeps and manual deposits land in.
type Pot struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

type Debt struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	APR            decimal.Decimal `json:"apr"`
	MinimumPayment decimal.Decimal `json:"minimum_payment"`
	PaidOffAt      *time.Time      `json:"paid_off_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

type RoundupSweep struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	PotID          uuid.UUID       `json:"pot_id"`
	Amount         decimal.Decimal `json:"amount"`
	TransactionIDs []uuid.UUID     `json:"transaction_ids"`
	CreatedAt      time.Time       `json:"created_at"`
}
