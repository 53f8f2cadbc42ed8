package handlers

import (
	"context"
	"net/http"
	"time"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/finance"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"
	"finpilot-server/src/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type budgetRequest struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Period   string          `json:"period"`
}

func (req budgetRequest) toBudget(userID uuid.UUID) (*models.Budget, string) {
	category, ok := util.NormalizeCategory(req.Category)
	b := &models.Budget{
		UserID:   userID,
		Category: category,
		Amount:   req.Amount.Round(2),
		Period:   req.Period,
	}
	if b.Period == "" {
		b.Period = models.PeriodMonthly
	}
	switch {
	case !ok:
		return nil, "a valid category is required"
	case !b.Amount.IsPositive():
		return nil, "amount must be positive"
	case b.Period != models.PeriodMonthly && b.Period != models.PeriodWeekly:
		return nil, "period must be monthly or weekly"
	}
	return b, ""
}

func GetBudgets(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		budgets, err := cached(env, r, cache.KeyBudgets, "budgets", nil, nil,
			func(ctx context.Context) ([]models.Budget, error) {
				return db.GetAllBudgetsForUser(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve budgets")
			return
		}
		writeJSON(w, http.StatusOK, budgets)
	}
}

func CreateBudget(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req budgetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		budget, msg := req.toBudget(userID)
		if budget == nil {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		created, err := db.CreateBudget(r.Context(), env.DB, budget)
		if err != nil {
			fail(w, r, err, "Failed to create budget")
			return
		}
		mutated(env, r, cache.BudgetCreate)
		writeJSON(w, http.StatusCreated, created)
	}
}

func UpdateBudget(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		budgetID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}
		var req budgetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		budget, msg := req.toBudget(userID)
		if budget == nil {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		budget.ID = budgetID

		updated, err := db.UpdateBudget(r.Context(), env.DB, budget)
		if err != nil {
			fail(w, r, err, "Failed to update budget")
			return
		}
		mutated(env, r, cache.BudgetUpdate)
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteBudget(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		budgetID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}
		if err := db.DeleteBudget(r.Context(), env.DB, userID, budgetID); err != nil {
			fail(w, r, err, "Failed to delete budget")
			return
		}
		mutated(env, r, cache.BudgetDelete)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetBudgetPacing reports, per budget, how spending so far compares with a
// straight-line spend across the current period.
func GetBudgetPacing(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		now := time.Now().UTC()
		filters := map[string]any{"day": now.Format(time.DateOnly)}

		report, err := cached(env, r, cache.KeyBudgetPacing, "budgets/pacing", nil, filters,
			func(ctx context.Context) ([]finance.BudgetPace, error) {
				budgets, err := db.GetAllBudgetsForUser(ctx, env.DB, userID)
				if err != nil {
					return nil, err
				}
				return paceBudgets(ctx, env, userID, budgets, now)
			})
		if err != nil {
			fail(w, r, err, "Failed to compute budget pacing")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func paceBudgets(ctx context.Context, env *Env, userID uuid.UUID, budgets []models.Budget, now time.Time) ([]finance.BudgetPace, error) {
	report := []finance.BudgetPace{}
	if len(budgets) == 0 {
		return report, nil
	}

	// Monthly and weekly windows both fall inside the range starting at the
	// earlier of the two starts.
	monthStart, _, _ := finance.PeriodBounds(models.PeriodMonthly, now)
	weekStart, _, _ := finance.PeriodBounds(models.PeriodWeekly, now)
	from := monthStart
	if weekStart.Before(from) {
		from = weekStart
	}
	txns, err := db.GetTransactions(ctx, env.DB, userID, models.TransactionFilter{From: &from})
	if err != nil {
		return nil, err
	}

	for _, b := range budgets {
		start, end, err := finance.PeriodBounds(b.Period, now)
		if err != nil {
			return nil, err
		}
		spent := finance.SpentByCategory(txns, start, end)[b.Category]
		pace, err := finance.Pace(b, spent, now)
		if err != nil {
			return nil, err
		}
		report = append(report, pace)
	}
	return report, nil
}
