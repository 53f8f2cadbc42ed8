package models

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	UserID            uuid.UUID  `json:"user_id"`
	DisplayName       string     `json:"display_name"`
	RoundupEnabled    bool       `json:"roundup_enabled"`
	RoundupMultiplier int        `json:"roundup_multiplier"`
	RoundupPotID      *uuid.UUID `json:"roundup_pot_id"`
	XP                int        `json:"xp"`
	Level             int        `json:"level"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Insight struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
