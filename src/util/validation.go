package util

import (
	"regexp"
	"strings"
)

var (
	coinIDPattern   = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)
	symbolPattern   = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,12}$`)
	currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
	categoryPattern = regexp.MustCompile(`^[a-z0-9_ &-]{1,40}$`)
)

// ValidateCoinID accepts CoinGecko ids such as "bitcoin" or "usd-coin".
func ValidateCoinID(id string) bool {
	return coinIDPattern.MatchString(id)
}

func ValidateSymbol(symbol string) bool {
	return symbolPattern.MatchString(symbol)
}

func ValidateCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// NormalizeCategory lowercases and trims a category, returning false when
// the result is not a usable category name.
func NormalizeCategory(category string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(category))
	return c, categoryPattern.MatchString(c)
}
