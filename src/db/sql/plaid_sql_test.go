package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeSynced(t *testing.T) {
	now := time.Now()
	rules := []models.CategoryRule{
		{Name: "joint bills", Conditions: json.RawMessage(`{"field":"account","op":"equals","value":"Joint Checking"}`), Category: "household", Priority: 1, CreatedAt: now},
		{Name: "coffee", Pattern: "starbucks", Category: "coffee", Priority: 2, CreatedAt: now},
		{Name: "big spend", Conditions: json.RawMessage(`{"field":"amount","op":"gte","value":500}`), Category: "large", Priority: 3, CreatedAt: now},
	}
	accounts := map[string]string{
		"acc-joint":    "Joint Checking",
		"acc-personal": "Personal Checking",
	}
	merchant := "Starbucks"

	tests := []struct {
		name string
		row  syncedRow
		want string
	}{
		{"account leaf matches synced row", syncedRow{Name: "ELECTRIC CO", Amount: decimal.NewFromInt(80), PlaidAccountID: "acc-joint", PlaidPrimary: "RENT_AND_UTILITIES"}, "household"},
		{"account rule wins by priority", syncedRow{Name: "STARBUCKS 42", Amount: decimal.NewFromInt(5), PlaidAccountID: "acc-joint"}, "household"},
		{"merchant pattern", syncedRow{Name: "SBUX 42", MerchantName: &merchant, Amount: decimal.NewFromInt(5), PlaidAccountID: "acc-personal"}, "coffee"},
		{"amount leaf", syncedRow{Name: "TV STORE", Amount: decimal.NewFromInt(900), PlaidAccountID: "acc-personal"}, "large"},
		{"unknown account falls back to plaid", syncedRow{Name: "ELECTRIC CO", Amount: decimal.NewFromInt(80), PlaidAccountID: "acc-gone", PlaidPrimary: "RENT_AND_UTILITIES"}, "rent_and_utilities"},
		{"no category at all", syncedRow{Name: "MISC", Amount: decimal.NewFromInt(1), PlaidAccountID: "acc-personal"}, "uncategorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categorizeSynced(rules, accounts, tt.row))
		})
	}
}

// execRecorder records Exec calls and reports tag for each.
type execRecorder struct {
	tag   string
	execs []string
}

func (r *execRecorder) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.execs = append(r.execs, sql)
	return pgconn.NewCommandTag(r.tag), nil
}

func (r *execRecorder) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not used")
}

func (r *execRecorder) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not used")
}

func TestManualCategoryIsLocked(t *testing.T) {
	rec := &execRecorder{tag: "UPDATE 1"}
	require.NoError(t, UpdateTransactionCategory(context.Background(), rec, uuid.New(), uuid.New(), "rent"))
	require.Len(t, rec.execs, 1)
	assert.Contains(t, rec.execs[0], "category_locked = TRUE")
}

func TestRuleCategorySkipsLockedRows(t *testing.T) {
	rec := &execRecorder{tag: "UPDATE 0"}
	updated, err := setRuleCategory(context.Background(), rec, uuid.New(), uuid.New(), "coffee")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Contains(t, rec.execs[0], "NOT category_locked")
}

func TestSyncUpsertKeepsLockedCategory(t *testing.T) {
	assert.Contains(t, upsertSyncedTransactionSQL,
		"category = CASE WHEN transactions.category_locked THEN transactions.category ELSE EXCLUDED.category END")
}
