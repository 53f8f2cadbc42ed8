package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeNetWorth(t *testing.T) {
	nw := ComputeNetWorth(BalanceTotals{
		Cash:   decimal.RequireFromString("2500.00"),
		Credit: decimal.RequireFromString("-300.50"),
		Pots:   decimal.RequireFromString("120.25"),
		Debts:  decimal.RequireFromString("1000"),
	})
	assert.Equal(t, "2620.25", nw.Assets.String())
	assert.Equal(t, "1300.5", nw.Liabilities.String())
	assert.Equal(t, "1319.75", nw.Total.String())
}

func TestComputeNetWorthEmpty(t *testing.T) {
	nw := ComputeNetWorth(BalanceTotals{})
	assert.True(t, nw.Total.IsZero())
}
