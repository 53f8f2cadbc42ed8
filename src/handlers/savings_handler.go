package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/finance"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil || !req.Amount.IsPositive() {
		http.Error(w, "a positive amount is required", http.StatusBadRequest)
		return decimal.Zero, false
	}
	return req.Amount.Round(2), true
}

func GetGoals(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		goals, err := cached(env, r, cache.KeyGoals, "goals", nil, nil,
			func(ctx context.Context) ([]models.Goal, error) {
				return db.GetGoals(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve goals")
			return
		}
		writeJSON(w, http.StatusOK, goals)
	}
}

func CreateGoal(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			Name         string          `json:"name"`
			TargetAmount decimal.Decimal `json:"target_amount"`
			TargetDate   string          `json:"target_date"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" || !req.TargetAmount.IsPositive() {
			http.Error(w, "name and a positive target_amount are required", http.StatusBadRequest)
			return
		}
		goal := &models.Goal{UserID: userID, Name: strings.TrimSpace(req.Name), TargetAmount: req.TargetAmount.Round(2)}
		if req.TargetDate != "" {
			d, err := time.Parse(time.DateOnly, req.TargetDate)
			if err != nil {
				http.Error(w, "target_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			goal.TargetDate = &d
		}

		created, err := db.CreateGoal(r.Context(), env.DB, goal)
		if err != nil {
			fail(w, r, err, "Failed to create goal")
			return
		}
		mutated(env, r, cache.GoalCreate)
		writeJSON(w, http.StatusCreated, created)
	}
}

func ContributeToGoal(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		goalID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid goal id", http.StatusBadRequest)
			return
		}
		amount, ok := decodeAmount(w, r)
		if !ok {
			return
		}

		var goal *models.Goal
		err = pgx.BeginFunc(r.Context(), env.DB, func(tx pgx.Tx) error {
			var err error
			if goal, err = db.ContributeToGoal(r.Context(), tx, userID, goalID, amount); err != nil {
				return err
			}
			_, err = db.GrantXP(r.Context(), tx, userID, finance.XPGoalContribution)
			return err
		})
		if err != nil {
			fail(w, r, err, "Failed to contribute to goal")
			return
		}
		mutated(env, r, cache.GoalContribute)
		writeJSON(w, http.StatusOK, goal)
	}
}

func DeleteGoal(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		goalID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid goal id", http.StatusBadRequest)
			return
		}
		if err := db.DeleteGoal(r.Context(), env.DB, userID, goalID); err != nil {
			fail(w, r, err, "Failed to delete goal")
			return
		}
		mutated(env, r, cache.GoalDelete)
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetPots(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		pots, err := cached(env, r, cache.KeyPots, "pots", nil, nil,
			func(ctx context.Context) ([]models.Pot, error) {
				return db.GetPots(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve pots")
			return
		}
		writeJSON(w, http.StatusOK, pots)
	}
}

func CreatePot(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		created, err := db.CreatePot(r.Context(), env.DB, &models.Pot{UserID: userID, Name: strings.TrimSpace(req.Name)})
		if err != nil {
			fail(w, r, err, "Failed to create pot")
			return
		}
		mutated(env, r, cache.PotCreate)
		writeJSON(w, http.StatusCreated, created)
	}
}

// MovePotFunds deposits into or withdraws from a pot. Deposits earn XP.
func MovePotFunds(env *Env, withdraw bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		potID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid pot id", http.StatusBadRequest)
			return
		}
		amount, ok := decodeAmount(w, r)
		if !ok {
			return
		}

		tag := cache.PotDeposit
		if withdraw {
			tag = cache.PotWithdraw
			amount = amount.Neg()
		}

		var pot *models.Pot
		err = pgx.BeginFunc(r.Context(), env.DB, func(tx pgx.Tx) error {
			var err error
			if pot, err = db.AdjustPotBalance(r.Context(), tx, userID, potID, amount); err != nil {
				return err
			}
			if withdraw {
				return nil
			}
			_, err = db.GrantXP(r.Context(), tx, userID, finance.XPPotDeposit)
			return err
		})
		if err != nil {
			fail(w, r, err, "Failed to move pot funds")
			return
		}
		mutated(env, r, tag)
		writeJSON(w, http.StatusOK, pot)
	}
}

func GetDebts(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		debts, err := cached(env, r, cache.KeyDebts, "debts", nil, nil,
			func(ctx context.Context) ([]models.Debt, error) {
				return db.GetDebts(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve debts")
			return
		}
		writeJSON(w, http.StatusOK, debts)
	}
}

func CreateDebt(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			Name           string          `json:"name"`
			Balance        decimal.Decimal `json:"balance"`
			APR            decimal.Decimal `json:"apr"`
			MinimumPayment decimal.Decimal `json:"minimum_payment"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" || !req.Balance.IsPositive() || req.APR.IsNegative() || req.MinimumPayment.IsNegative() {
			http.Error(w, "name and a positive balance are required", http.StatusBadRequest)
			return
		}

		created, err := db.CreateDebt(r.Context(), env.DB, &models.Debt{
			UserID:         userID,
			Name:           strings.TrimSpace(req.Name),
			Balance:        req.Balance.Round(2),
			APR:            req.APR,
			MinimumPayment: req.MinimumPayment.Round(2),
		})
		if err != nil {
			fail(w, r, err, "Failed to create debt")
			return
		}
		mutated(env, r, cache.DebtCreate)
		writeJSON(w, http.StatusCreated, created)
	}
}

func PayDebt(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		debtID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid debt id", http.StatusBadRequest)
			return
		}
		amount, ok := decodeAmount(w, r)
		if !ok {
			return
		}

		var debt *models.Debt
		err = pgx.BeginFunc(r.Context(), env.DB, func(tx pgx.Tx) error {
			var err error
			if debt, err = db.PayDebt(r.Context(), tx, userID, debtID, amount); err != nil {
				return err
			}
			_, err = db.GrantXP(r.Context(), tx, userID, finance.XPDebtPayment)
			return err
		})
		if err != nil {
			fail(w, r, err, "Failed to record debt payment")
			return
		}
		mutated(env, r, cache.DebtPayment)
		writeJSON(w, http.StatusOK, debt)
	}
}
