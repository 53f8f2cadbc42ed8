package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/finance"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"
	"finpilot-server/src/providers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const insightHistory = 20

const insightSystemPrompt = "You are a budgeting assistant. Given a user's spending summary, " +
	"reply with three short, specific and actionable suggestions. Do not invent numbers."

func GetInsights(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		insights, err := cached(env, r, cache.KeyInsights, "insights", nil, nil,
			func(ctx context.Context) ([]models.Insight, error) {
				return db.GetInsights(ctx, env.DB, userID, insightHistory)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve insights")
			return
		}
		writeJSON(w, http.StatusOK, insights)
	}
}

// CreateInsight asks the LLM gateway for advice on the last 30 days of
// spending and stores the answer.
func CreateInsight(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		now := time.Now().UTC()

		summary, err := spendingSummary(r.Context(), env, userID, now)
		if err != nil {
			fail(w, r, err, "Failed to summarise spending")
			return
		}

		content, err := env.LLM.Complete(r.Context(), []providers.ChatMessage{
			{Role: "system", Content: insightSystemPrompt},
			{Role: "user", Content: summary},
		})
		if err != nil {
			fail(w, r, err, "Failed to generate insight")
			return
		}

		insight, err := db.CreateInsight(r.Context(), env.DB, &models.Insight{UserID: userID, Content: content, Model: env.LLM.Model()})
		if err != nil {
			fail(w, r, err, "Failed to store insight")
			return
		}
		mutated(env, r, cache.InsightCreate)
		writeJSON(w, http.StatusCreated, insight)
	}
}

func spendingSummary(ctx context.Context, env *Env, userID uuid.UUID, now time.Time) (string, error) {
	from := now.AddDate(0, 0, -30)
	txns, err := db.GetTransactions(ctx, env.DB, userID, models.TransactionFilter{From: &from})
	if err != nil {
		return "", err
	}
	budgets, err := db.GetAllBudgetsForUser(ctx, env.DB, userID)
	if err != nil {
		return "", err
	}
	pacing, err := paceBudgets(ctx, env, userID, budgets, now)
	if err != nil {
		return "", err
	}
	return formatSpendingSummary(finance.SpentByCategory(txns, from, now.AddDate(0, 0, 1)), pacing), nil
}

func formatSpendingSummary(spent map[string]decimal.Decimal, pacing []finance.BudgetPace) string {
	categories := make([]string, 0, len(spent))
	for c := range spent {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		return spent[categories[i]].GreaterThan(spent[categories[j]])
	})

	var b strings.Builder
	b.WriteString("Spending over the last 30 days by category:\n")
	if len(categories) == 0 {
		b.WriteString("- no spending recorded\n")
	}
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", c, spent[c].StringFixed(2))
	}
	if len(pacing) > 0 {
		b.WriteString("Budgets this period:\n")
		for _, p := range pacing {
			fmt.Fprintf(&b, "- %s (%s): spent %s of %s, status %s\n",
				p.Category, p.Period, p.Spent.StringFixed(2), p.Amount.StringFixed(2), p.Status)
		}
	}
	return b.String()
}
