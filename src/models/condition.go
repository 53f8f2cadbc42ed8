package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Condition is a node of a category rule's condition tree. A node is either
// a leaf (Field/Op/Value) or a group (And/Or).
type Condition struct {
	Field string      `json:"field,omitempty"`
	Op    string      `json:"op,omitempty"`
	Value interface{} `json:"value,omitempty"`
	And   []Condition `json:"and,omitempty"`
	Or    []Condition `json:"or,omitempty"`
}

// CategoryRule assigns Category to matching transactions. Pattern is a plain
// substring match on name or merchant; Conditions, when set, is a JSON
// Condition tree and takes precedence over Pattern.
type CategoryRule struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Name       string          `json:"name"`
	Pattern    string          `json:"pattern,omitempty"`
	Conditions json.RawMessage `json:"conditions,omitempty"` // JSONB
	Category   string          `json:"category"`
	Priority   int             `json:"priority"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
