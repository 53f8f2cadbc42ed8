package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"
	"finpilot-server/src/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// parseTransactionFilter reads offset, limit, category, account_id, from and to.
func parseTransactionFilter(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()
	f := models.TransactionFilter{Limit: defaultPageSize, Category: strings.ToLower(q.Get("category"))}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errBadParam("offset")
		}
		f.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return f, errBadParam("limit")
		}
		f.Limit = n
	}
	if v := q.Get("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errBadParam("account_id")
		}
		f.AccountID = &id
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.DateOnly, v)
			if err != nil {
				return f, errBadParam(name)
			}
			*dst = &t
		}
	}
	return f, nil
}

type errBadParam string

func (e errBadParam) Error() string {
	return "invalid " + string(e)
}

func transactionCacheFilters(f models.TransactionFilter) map[string]any {
	filters := map[string]any{}
	if f.Category != "" {
		filters["category"] = f.Category
	}
	if f.AccountID != nil {
		filters["account_id"] = f.AccountID.String()
	}
	if f.From != nil {
		filters["from"] = f.From.Format(time.DateOnly)
	}
	if f.To != nil {
		filters["to"] = f.To.Format(time.DateOnly)
	}
	return filters
}

func GetTransactions(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		f, err := parseTransactionFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		page := &cache.Page{Offset: f.Offset, Limit: f.Limit}
		txns, err := cached(env, r, cache.KeyTransactions, "transactions", page, transactionCacheFilters(f),
			func(ctx context.Context) ([]models.Transaction, error) {
				return db.GetTransactions(ctx, env.DB, userID, f)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve transactions")
			return
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

func CreateTransaction(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			Amount       decimal.Decimal `json:"amount"`
			Name         string          `json:"name"`
			MerchantName *string         `json:"merchant_name"`
			Category     string          `json:"category"`
			Date         string          `json:"date"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" || req.Amount.IsZero() {
			http.Error(w, "name and a non-zero amount are required", http.StatusBadRequest)
			return
		}
		date := time.Now().UTC().Truncate(24 * time.Hour)
		if req.Date != "" {
			d, err := time.Parse(time.DateOnly, req.Date)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			date = d
		}
		category := "uncategorized"
		if strings.TrimSpace(req.Category) != "" {
			var ok bool
			if category, ok = util.NormalizeCategory(req.Category); !ok {
				http.Error(w, "invalid category", http.StatusBadRequest)
				return
			}
		}

		created, err := db.CreateTransaction(r.Context(), env.DB, &models.Transaction{
			UserID:       userID,
			Amount:       req.Amount.Round(2),
			Name:         strings.TrimSpace(req.Name),
			MerchantName: req.MerchantName,
			Category:     category,
			Date:         date,
		})
		if err != nil {
			fail(w, r, err, "Failed to create transaction")
			return
		}
		mutated(env, r, cache.TransactionCreate)
		writeJSON(w, http.StatusCreated, created)
	}
}

func CategorizeTransaction(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		txnID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}
		var req struct {
			Category string `json:"category"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		category, ok := util.NormalizeCategory(req.Category)
		if !ok {
			http.Error(w, "invalid category", http.StatusBadRequest)
			return
		}

		if err := db.UpdateTransactionCategory(r.Context(), env.DB, userID, txnID, category); err != nil {
			fail(w, r, err, "Failed to update transaction")
			return
		}
		mutated(env, r, cache.TransactionCategorize)

		txn, err := db.GetTransactionByID(r.Context(), env.DB, userID, txnID)
		if err != nil {
			fail(w, r, err, "Failed to load transaction")
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}

func DeleteTransaction(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		txnID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}
		if err := db.DeleteTransaction(r.Context(), env.DB, userID, txnID); err != nil {
			fail(w, r, err, "Failed to delete transaction")
			return
		}
		mutated(env, r, cache.TransactionDelete)
		w.WriteHeader(http.StatusNoContent)
	}
}
