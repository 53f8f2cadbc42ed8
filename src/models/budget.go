package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PeriodMonthly = "monthly"
	PeriodWeekly  = "weekly"
)

type Budget struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Period    string          `json:"period"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
