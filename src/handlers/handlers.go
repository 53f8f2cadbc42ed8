package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/middleware"
	"finpilot-server/src/plaid"
	"finpilot-server/src/providers"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	plaidapi "github.com/plaid/plaid-go/v41/plaid"
)

// Database is the subset of *pgxpool.Pool the handlers use.
type Database interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PlaidService interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.LinkedItem, error)
	Accounts(ctx context.Context, accessToken string) ([]plaidapi.AccountBase, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*plaid.SyncResult, error)
	RemoveItem(ctx context.Context, accessToken string) error
	VerifyWebhook(ctx context.Context, body []byte, token string) error
}

type CryptoPriceSource interface {
	Prices(ctx context.Context, ids []string, vs string) ([]providers.CryptoPrice, error)
}

type StockQuoteSource interface {
	Quote(ctx context.Context, symbol string) (*providers.StockQuote, error)
}

type ExchangeRateSource interface {
	Latest(ctx context.Context, base string) (*providers.ExchangeRates, error)
}

type Completer interface {
	Model() string
	Complete(ctx context.Context, messages []providers.ChatMessage) (string, error)
}

// Env carries everything the handlers share.
type Env struct {
	DB          Database
	Cache       *cache.QueryCache
	Coalescer   *cache.Coalescer
	Invalidator *cache.Invalidator
	Plaid       PlaidService
	Crypto      CryptoPriceSource
	Stocks      StockQuoteSource
	FX          ExchangeRateSource
	LLM         Completer
}

const producerTimeout = 20 * time.Second

// cached serves a read through the query cache. The producer runs detached
// from the request, since coalesced callers share it.
func cached[T any](env *Env, r *http.Request, partition, resource string, page *cache.Page, filters map[string]any, load func(ctx context.Context) (T, error)) (T, error) {
	userID := middleware.UserID(r.Context()).String()
	key := cache.CreateCacheKey(r.Method, resource, page, filters)
	return cache.Query(env.Cache, env.Coalescer, userID, partition, key, func() (T, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), producerTimeout)
		defer cancel()
		return load(ctx)
	})
}

// mutated applies tag's invalidations for the requesting user.
func mutated(env *Env, r *http.Request, tag cache.MutationTag) {
	env.Invalidator.Mutated(middleware.UserID(r.Context()).String(), tag)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// fail maps err to a status and writes msg. Unexpected errors are logged.
func fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var apiErr *providers.APIError
	switch {
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, db.ErrInsufficientFunds):
		http.Error(w, "insufficient funds", http.StatusConflict)
	case errors.Is(err, db.ErrDuplicateWallet):
		http.Error(w, db.ErrDuplicateWallet.Error(), http.StatusConflict)
	case errors.Is(err, providers.ErrSymbolNotFound):
		http.Error(w, "symbol not found", http.StatusNotFound)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		w.Header().Set("Retry-After", "60")
		http.Error(w, msg, http.StatusTooManyRequests)
	case errors.As(err, &apiErr):
		slog.Error(msg, "error", err, "path", r.URL.Path)
		http.Error(w, msg, http.StatusBadGateway)
	default:
		slog.Error(msg, "error", err, "path", r.URL.Path, "user_id", middleware.UserID(r.Context()))
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
