package providers

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type CryptoPrice struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Price     decimal.Decimal `json:"price"`
	Change24h float64         `json:"change_24h"`
}

type CoinGeckoClient struct {
	baseClient
}

func NewCoinGeckoClient(baseURL, apiKey string) *CoinGeckoClient {
	headers := map[string]string{}
	if apiKey != "" {
		headers["x-cg-demo-api-key"] = apiKey
	}
	return &CoinGeckoClient{baseClient: newBaseClient("coingecko", baseURL, headers)}
}

// Prices returns the price of each coin id in vs, sorted by id. Ids that
// CoinGecko does not know are left out.
func (c *CoinGeckoClient) Prices(ctx context.Context, ids []string, vs string) ([]CryptoPrice, error) {
	vs = strings.ToLower(vs)
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", vs)
	q.Set("include_24hr_change", "true")

	var raw map[string]map[string]float64
	if err := c.getJSON(ctx, "/simple/price", q, &raw); err != nil {
		return nil, err
	}

	prices := make([]CryptoPrice, 0, len(raw))
	for id, quote := range raw {
		price, ok := quote[vs]
		if !ok {
			continue
		}
		prices = append(prices, CryptoPrice{
			ID:        id,
			Currency:  vs,
			Price:     decimal.NewFromFloat(price),
			Change24h: quote[vs+"_24h_change"],
		})
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].ID < prices[j].ID })
	return prices, nil
}
