package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMarketInputs(t *testing.T) {
	assert.True(t, ValidateCoinID("usd-coin"))
	assert.False(t, ValidateCoinID("Bitcoin"))
	assert.False(t, ValidateCoinID(""))

	assert.True(t, ValidateSymbol("BRK.B"))
	assert.False(t, ValidateSymbol("AAPL;DROP"))

	assert.True(t, ValidateCurrency("eur"))
	assert.False(t, ValidateCurrency("EURO"))
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"  Groceries ", "groceries", true},
		{"food & drink", "food & drink", true},
		{"", "", false},
		{"rent!", "rent!", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCategory(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
