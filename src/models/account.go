package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaidItem is one Plaid login. AccessToken and SyncCursor never leave the server.
type PlaidItem struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	ItemID          string    `json:"item_id"`
	AccessToken     string    `json:"-"`
	InstitutionID   string    `json:"institution_id"`
	InstitutionName string    `json:"institution_name"`
	SyncCursor      string    `json:"-"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

type ConnectedAccount struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"user_id"`
	PlaidItemID      uuid.UUID           `json:"plaid_item_id"`
	PlaidAccountID   string              `json:"plaid_account_id"`
	InstitutionName  string              `json:"institution_name"`
	Name             string              `json:"name"`
	OfficialName     string              `json:"official_name"`
	Mask             string              `json:"mask"`
	Type             string              `json:"type"`
	Subtype          string              `json:"subtype"`
	CurrentBalance   decimal.NullDecimal `json:"current_balance"`
	AvailableBalance decimal.NullDecimal `json:"available_balance"`
	Currency         string              `json:"currency"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
