package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrSymbolNotFound = errors.New("symbol not found")

type StockQuote struct {
	Symbol           string          `json:"symbol"`
	Price            decimal.Decimal `json:"price"`
	Change           decimal.Decimal `json:"change"`
	ChangePercent    string          `json:"change_percent"`
	LatestTradingDay string          `json:"latest_trading_day"`
}

type AlphaVantageClient struct {
	baseClient
	apiKey string
}

func NewAlphaVantageClient(baseURL, apiKey string) *AlphaVantageClient {
	return &AlphaVantageClient{
		baseClient: newBaseClient("alphavantage", baseURL, nil),
		apiKey:     apiKey,
	}
}

// Quote fetches GLOBAL_QUOTE for symbol. Alpha Vantage answers throttling
// with a 200 and a "Note" or "Information" field; that becomes a 429 APIError.
func (c *AlphaVantageClient) Quote(ctx context.Context, symbol string) (*StockQuote, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("apikey", c.apiKey)

	var raw struct {
		GlobalQuote map[string]string `json:"Global Quote"`
		Note        string            `json:"Note"`
		Information string            `json:"Information"`
		ErrorMsg    string            `json:"Error Message"`
	}
	if err := c.getJSON(ctx, "/query", q, &raw); err != nil {
		return nil, err
	}

	if msg := raw.Note + raw.Information; msg != "" {
		return nil, &APIError{Provider: c.name, StatusCode: http.StatusTooManyRequests, Message: msg}
	}
	if raw.ErrorMsg != "" || len(raw.GlobalQuote) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	price, err := decimal.NewFromString(raw.GlobalQuote["05. price"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}
	change, _ := decimal.NewFromString(raw.GlobalQuote["09. change"])

	return &StockQuote{
		Symbol:           raw.GlobalQuote["01. symbol"],
		Price:            price,
		Change:           change,
		ChangePercent:    raw.GlobalQuote["10. change percent"],
		LatestTradingDay: raw.GlobalQuote["07. latest trading day"],
	}, nil
}
