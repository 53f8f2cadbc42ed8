package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ExchangeRates struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

type ExchangeRateClient struct {
	baseClient
}

func NewExchangeRateClient(baseURL string) *ExchangeRateClient {
	return &ExchangeRateClient{baseClient: newBaseClient("exchangerate", baseURL, nil)}
}

func (c *ExchangeRateClient) Latest(ctx context.Context, base string) (*ExchangeRates, error) {
	base = strings.ToUpper(base)

	var raw struct {
		Result     string             `json:"result"`
		ErrorType  string             `json:"error-type"`
		BaseCode   string             `json:"base_code"`
		LastUpdate int64              `json:"time_last_update_unix"`
		Rates      map[string]float64 `json:"rates"`
	}
	if err := c.getJSON(ctx, "/latest/"+base, nil, &raw); err != nil {
		return nil, err
	}
	if raw.Result != "success" {
		return nil, &APIError{Provider: c.name, StatusCode: http.StatusBadRequest, Message: raw.ErrorType}
	}

	rates := make(map[string]decimal.Decimal, len(raw.Rates))
	for code, r := range raw.Rates {
		rates[code] = decimal.NewFromFloat(r)
	}
	return &ExchangeRates{
		Base:      raw.BaseCode,
		Rates:     rates,
		UpdatedAt: time.Unix(raw.LastUpdate, 0).UTC(),
	}, nil
}
