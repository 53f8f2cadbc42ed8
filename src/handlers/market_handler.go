package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"finpilot-server/src/cache"
	"finpilot-server/src/providers"
	"finpilot-server/src/util"

	"github.com/go-chi/chi/v5"
)

// sharedScope is the cache owner for data that is the same for every user.
const sharedScope = ""

func cachedShared[T any](env *Env, r *http.Request, partition, resource string, filters map[string]any, load func(ctx context.Context) (T, error)) (T, error) {
	key := cache.CreateCacheKey(r.Method, resource, nil, filters)
	return cache.Query(env.Cache, env.Coalescer, sharedScope, partition, key, func() (T, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), producerTimeout)
		defer cancel()
		return load(ctx)
	})
}

func GetCryptoPrices(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			id = strings.ToLower(strings.TrimSpace(id))
			if id == "" {
				continue
			}
			if !util.ValidateCoinID(id) {
				http.Error(w, "invalid coin id", http.StatusBadRequest)
				return
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			http.Error(w, "ids is required", http.StatusBadRequest)
			return
		}
		sort.Strings(ids)

		vs := strings.ToLower(r.URL.Query().Get("vs"))
		if vs == "" {
			vs = "usd"
		}
		if !util.ValidateCurrency(vs) {
			http.Error(w, "invalid vs currency", http.StatusBadRequest)
			return
		}

		filters := map[string]any{"ids": strings.Join(ids, ","), "vs": vs}
		prices, err := cachedShared(env, r, cache.KeyCryptoPrices, "prices/crypto", filters,
			func(ctx context.Context) ([]providers.CryptoPrice, error) {
				return env.Crypto.Prices(ctx, ids, vs)
			})
		if err != nil {
			fail(w, r, err, "Failed to fetch crypto prices")
			return
		}
		writeJSON(w, http.StatusOK, prices)
	}
}

func GetStockQuote(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
		if !util.ValidateSymbol(symbol) {
			http.Error(w, "invalid symbol", http.StatusBadRequest)
			return
		}

		quote, err := cachedShared(env, r, cache.KeyStockQuotes, "prices/stock", map[string]any{"symbol": symbol},
			func(ctx context.Context) (*providers.StockQuote, error) {
				return env.Stocks.Quote(ctx, symbol)
			})
		if err != nil {
			fail(w, r, err, "Failed to fetch stock quote")
			return
		}
		writeJSON(w, http.StatusOK, quote)
	}
}

func GetExchangeRates(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := strings.ToUpper(r.URL.Query().Get("base"))
		if base == "" {
			base = "USD"
		}
		if !util.ValidateCurrency(base) {
			http.Error(w, "invalid base currency", http.StatusBadRequest)
			return
		}

		rates, err := cachedShared(env, r, cache.KeyExchangeRates, "fx", map[string]any{"base": base},
			func(ctx context.Context) (*providers.ExchangeRates, error) {
				return env.FX.Latest(ctx, base)
			})
		if err != nil {
			fail(w, r, err, "Failed to fetch exchange rates")
			return
		}
		writeJSON(w, http.StatusOK, rates)
	}
}
