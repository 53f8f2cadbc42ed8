package finance

import (
	"testing"

	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundUpAmount(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		multiplier int
		want       string
		wantErr    error
	}{
		{"spare change", "4.35", 1, "0.65", nil},
		{"doubled", "4.35", 2, "1.3", nil},
		{"whole amount", "12.00", 1, "0", nil},
		{"credit", "-20.10", 1, "0", nil},
		{"one cent", "0.99", 1, "0.01", nil},
		{"multiplier too small", "1.50", 0, "0", ErrInvalidMultiplier},
		{"multiplier too big", "1.50", 11, "0", ErrInvalidMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoundUpAmount(decimal.RequireFromString(tt.amount), tt.multiplier)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestPreviewRoundUps(t *testing.T) {
	txns := []models.Transaction{
		{ID: uuid.New(), Name: "Coffee", Amount: decimal.RequireFromString("3.40")},
		{ID: uuid.New(), Name: "Groceries", Amount: decimal.RequireFromString("52.10")},
		{ID: uuid.New(), Name: "Pending", Amount: decimal.RequireFromString("9.99"), Pending: true},
		{ID: uuid.New(), Name: "Swept", Amount: decimal.RequireFromString("1.01"), RoundupSwept: true},
		{ID: uuid.New(), Name: "Salary", Amount: decimal.RequireFromString("-2500.00")},
		{ID: uuid.New(), Name: "Even", Amount: decimal.RequireFromString("20")},
	}

	preview, err := PreviewRoundUps(txns, 1)
	require.NoError(t, err)
	require.Len(t, preview.Items, 2)
	assert.True(t, decimal.RequireFromString("1.50").Equal(preview.Total))
	assert.Equal(t, []uuid.UUID{txns[0].ID, txns[1].ID}, preview.TransactionIDs())

	_, err = PreviewRoundUps(txns, 0)
	assert.ErrorIs(t, err, ErrInvalidMultiplier)
}
