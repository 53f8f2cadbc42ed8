package models

import (
	"time"

	"github.com/google/uuid"
)

type CryptoWallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

type WalletNotification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	WalletID  *uuid.UUID `json:"wallet_id"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
}

// APIQuota mirrors a row maintained by the edge functions that call
// third-party APIs. The server only reads it.
type APIQuota struct {
	Provider     string     `json:"provider"`
	CallsToday   int        `json:"calls_today"`
	DailyLimit   int        `json:"daily_limit"`
	CircuitState string     `json:"circuit_state"`
	FailureCount int        `json:"failure_count"`
	OpenUntil    *time.Time `json:"open_until"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
