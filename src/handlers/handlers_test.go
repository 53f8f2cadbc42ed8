package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"finpilot-server/src/cache"
	"finpilot-server/src/middleware"
	"finpilot-server/src/plaid"
	"finpilot-server/src/providers"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	plaidapi "github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB answers every query as if the table were empty.
type fakeDB struct {
	execTag string
	execs   []string
}

type noRow struct{}

func (noRow) Scan(...any) error { return pgx.ErrNoRows }

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag(f.execTag), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDB: Query not supported")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return noRow{}
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeDB: Begin not supported")
}

type mockCrypto struct {
	calls atomic.Int32
	err   error
}

func (m *mockCrypto) Prices(ctx context.Context, ids []string, vs string) ([]providers.CryptoPrice, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]providers.CryptoPrice, 0, len(ids))
	for _, id := range ids {
		out = append(out, providers.CryptoPrice{ID: id, Currency: vs, Price: decimal.NewFromInt(100)})
	}
	return out, nil
}

type mockStocks struct{ err error }

func (m *mockStocks) Quote(ctx context.Context, symbol string) (*providers.StockQuote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &providers.StockQuote{Symbol: symbol, Price: decimal.RequireFromString("182.34")}, nil
}

type mockFX struct{ base string }

func (m *mockFX) Latest(ctx context.Context, base string) (*providers.ExchangeRates, error) {
	m.base = base
	return &providers.ExchangeRates{Base: base, Rates: map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.92")}}, nil
}

type mockPlaid struct {
	verifyErr error
}

func (m *mockPlaid) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	return "link-sandbox-" + userID, nil
}

func (m *mockPlaid) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.LinkedItem, error) {
	return nil, errors.New("not used")
}

func (m *mockPlaid) Accounts(ctx context.Context, accessToken string) ([]plaidapi.AccountBase, error) {
	return nil, nil
}

func (m *mockPlaid) SyncTransactions(ctx context.Context, accessToken, cursor string) (*plaid.SyncResult, error) {
	return &plaid.SyncResult{Cursor: cursor}, nil
}

func (m *mockPlaid) RemoveItem(ctx context.Context, accessToken string) error {
	return nil
}

func (m *mockPlaid) VerifyWebhook(ctx context.Context, body []byte, token string) error {
	return m.verifyErr
}

var testUser = uuid.MustParse("6c1f7a52-1d7b-4b8e-9a55-0c7b1a0b9f11")

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	qc, err := cache.NewQueryCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(qc.Close)
	return &Env{
		DB:          &fakeDB{execTag: "DELETE 0"},
		Cache:       qc,
		Coalescer:   cache.NewCoalescer(),
		Invalidator: cache.NewInvalidator(qc),
		Plaid:       &mockPlaid{},
		Crypto:      &mockCrypto{},
		Stocks:      &mockStocks{},
		FX:          &mockFX{},
	}
}

// do routes one request through a chi mux so URL params resolve, with the
// test user's claims already in the context.
func do(t *testing.T, method, pattern, target string, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(middleware.WithClaims(req.Context(), &middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testUser.String()},
	}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestGetCryptoPricesServesFromCache(t *testing.T) {
	env := newTestEnv(t)
	crypto := &mockCrypto{}
	env.Crypto = crypto

	for i := 0; i < 2; i++ {
		rr := do(t, http.MethodGet, "/prices/crypto", "/prices/crypto?ids=ethereum,bitcoin", GetCryptoPrices(env), "")
		require.Equal(t, http.StatusOK, rr.Code)

		var prices []providers.CryptoPrice
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &prices))
		require.Len(t, prices, 2)
		assert.Equal(t, "bitcoin", prices[0].ID)
		assert.Equal(t, "usd", prices[0].Currency)
	}
	assert.Equal(t, int32(1), crypto.calls.Load())

	// Same ids in another order share the entry.
	rr := do(t, http.MethodGet, "/prices/crypto", "/prices/crypto?ids=bitcoin,ethereum", GetCryptoPrices(env), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(1), crypto.calls.Load())
}

func TestGetCryptoPricesValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		target string
	}{
		{"missing ids", "/prices/crypto"},
		{"bad id", "/prices/crypto?ids=bit%20coin"},
		{"bad vs", "/prices/crypto?ids=bitcoin&vs=dollars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, http.MethodGet, "/prices/crypto", tt.target, GetCryptoPrices(env), "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGetCryptoPricesUpstreamFailureIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	crypto := &mockCrypto{err: &providers.APIError{Provider: "coingecko", StatusCode: http.StatusServiceUnavailable}}
	env.Crypto = crypto

	rr := do(t, http.MethodGet, "/prices/crypto", "/prices/crypto?ids=bitcoin", GetCryptoPrices(env), "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	crypto.err = nil
	rr = do(t, http.MethodGet, "/prices/crypto", "/prices/crypto?ids=bitcoin", GetCryptoPrices(env), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(2), crypto.calls.Load())
}

func TestGetStockQuoteErrors(t *testing.T) {
	tests := []struct {
		name       string
		symbol     string
		err        error
		wantStatus int
	}{
		{"ok", "ibm", nil, http.StatusOK},
		{"invalid symbol", "IBM;DROP", nil, http.StatusBadRequest},
		{"throttled", "MSFT", &providers.APIError{Provider: "alphavantage", StatusCode: http.StatusTooManyRequests}, http.StatusTooManyRequests},
		{"unknown symbol", "NOPE", providers.ErrSymbolNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.Stocks = &mockStocks{err: tt.err}
			rr := do(t, http.MethodGet, "/prices/stock/{symbol}", "/prices/stock/"+tt.symbol, GetStockQuote(env), "")
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusTooManyRequests {
				assert.NotEmpty(t, rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestGetExchangeRatesDefaultsToUSD(t *testing.T) {
	env := newTestEnv(t)
	fx := &mockFX{}
	env.FX = fx

	rr := do(t, http.MethodGet, "/fx", "/fx", GetExchangeRates(env), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "USD", fx.base)

	rr = do(t, http.MethodGet, "/fx", "/fx?base=eu", GetExchangeRates(env), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetInvalidationKeys(t *testing.T) {
	rr := do(t, http.MethodGet, "/cache/keys/{tag}", "/cache/keys/"+string(cache.BudgetCreate), GetInvalidationKeys(), "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Tag  string   `json:"tag"`
		Keys []string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, cache.InvalidationKeys(cache.BudgetCreate), resp.Keys)

	rr = do(t, http.MethodGet, "/cache/keys/{tag}", "/cache/keys/nope", GetInvalidationKeys(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Keys)
	assert.Empty(t, resp.Keys)
}

func TestClearCacheDropsPartitionForEveryUser(t *testing.T) {
	env := newTestEnv(t)
	env.Cache.Set("u1", cache.KeyBudgets, "u1|budgets", 1)
	env.Cache.Set("u2", cache.KeyBudgets, "u2|budgets", 2)
	env.Cache.Set("u1", cache.KeyGoals, "u1|goals", 3)

	rr := do(t, http.MethodPost, "/admin/cache/clear/{partition}", "/admin/cache/clear/"+cache.KeyBudgets, ClearCache(env), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"partition":"budgets","cleared":2}`, rr.Body.String())

	_, ok := env.Cache.Get("u2|budgets")
	assert.False(t, ok)
	_, ok = env.Cache.Get("u1|goals")
	assert.True(t, ok)
}

func TestBadIDParams(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name    string
		method  string
		pattern string
		h       http.HandlerFunc
	}{
		{"delete budget", http.MethodDelete, "/budgets/{id}", DeleteBudget(env)},
		{"delete transaction", http.MethodDelete, "/transactions/{id}", DeleteTransaction(env)},
		{"contribute goal", http.MethodPost, "/goals/{id}", ContributeToGoal(env)},
		{"deposit pot", http.MethodPost, "/pots/{id}", MovePotFunds(env, false)},
		{"pay debt", http.MethodPost, "/debts/{id}", PayDebt(env)},
		{"delete rule", http.MethodDelete, "/category-rules/{id}", DeleteCategoryRule(env)},
		{"remove wallet", http.MethodDelete, "/wallets/{id}", RemoveWallet(env)},
		{"sync account", http.MethodPost, "/plaid/sync/{account_id}", SyncAccount(env)},
		{"delete account", http.MethodDelete, "/accounts/{account_id}", DeleteAccount(env)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := strings.NewReplacer("{id}", "not-a-uuid", "{account_id}", "not-a-uuid").Replace(tt.pattern)
			rr := do(t, tt.method, tt.pattern, target, tt.h, `{"amount":"10"}`)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestDeleteBudget(t *testing.T) {
	t.Run("missing row is 404", func(t *testing.T) {
		env := newTestEnv(t)
		rr := do(t, http.MethodDelete, "/budgets/{id}", "/budgets/"+uuid.NewString(), DeleteBudget(env), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("deleted row invalidates budgets", func(t *testing.T) {
		env := newTestEnv(t)
		env.DB = &fakeDB{execTag: "DELETE 1"}
		scoped := testUser.String() + "|budgets"
		env.Cache.Set(testUser.String(), cache.KeyBudgets, scoped, "stale")

		rr := do(t, http.MethodDelete, "/budgets/{id}", "/budgets/"+uuid.NewString(), DeleteBudget(env), "")
		assert.Equal(t, http.StatusNoContent, rr.Code)
		_, ok := env.Cache.Get(scoped)
		assert.False(t, ok)
	})
}

func TestCreateBudgetValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no category", `{"amount":"100"}`},
		{"zero amount", `{"category":"food","amount":"0"}`},
		{"bad period", `{"category":"food","amount":"100","period":"daily"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, http.MethodPost, "/budgets", "/budgets", CreateBudget(env), tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestCreateLinkToken(t *testing.T) {
	env := newTestEnv(t)
	rr := do(t, http.MethodPost, "/plaid/link-token", "/plaid/link-token", CreateLinkToken(env), "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "link-sandbox-"+testUser.String())
}

func TestPlaidWebhook(t *testing.T) {
	body := `{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`

	t.Run("unverified is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.Plaid = &mockPlaid{verifyErr: plaid.ErrWebhookUnverified}
		rr := do(t, http.MethodPost, "/plaid/webhook", "/plaid/webhook", PlaidWebhook(env), body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown item is acknowledged", func(t *testing.T) {
		env := newTestEnv(t)
		rr := do(t, http.MethodPost, "/plaid/webhook", "/plaid/webhook", PlaidWebhook(env), body)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)
		rr := do(t, http.MethodPost, "/plaid/webhook", "/plaid/webhook", PlaidWebhook(env), `not json`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
