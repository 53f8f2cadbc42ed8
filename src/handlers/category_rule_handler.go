package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/finance"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"
)

func GetCategoryRules(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		rules, err := cached(env, r, cache.KeyCategoryRules, "category-rules", nil, nil,
			func(ctx context.Context) ([]models.CategoryRule, error) {
				return db.GetCategoryRules(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve category rules")
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func CreateCategoryRule(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			Name       string          `json:"name"`
			Pattern    string          `json:"pattern"`
			Conditions json.RawMessage `json:"conditions"`
			Category   string          `json:"category"`
			Priority   int             `json:"priority"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		rule := &models.CategoryRule{
			UserID:   userID,
			Name:     strings.TrimSpace(req.Name),
			Pattern:  strings.TrimSpace(req.Pattern),
			Category: strings.ToLower(strings.TrimSpace(req.Category)),
			Priority: req.Priority,
		}
		if len(req.Conditions) > 0 && string(req.Conditions) != "null" {
			if !finance.ValidateConditions(req.Conditions) {
				http.Error(w, "invalid conditions", http.StatusBadRequest)
				return
			}
			rule.Conditions = req.Conditions
		}
		if rule.Name == "" || rule.Category == "" || (rule.Pattern == "" && rule.Conditions == nil) {
			http.Error(w, "name, category and a pattern or conditions are required", http.StatusBadRequest)
			return
		}

		created, err := db.CreateCategoryRule(r.Context(), env.DB, rule)
		if err != nil {
			fail(w, r, err, "Failed to create category rule")
			return
		}
		mutated(env, r, cache.RuleCreate)
		writeJSON(w, http.StatusCreated, created)
	}
}

func DeleteCategoryRule(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		ruleID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid rule id", http.StatusBadRequest)
			return
		}
		if err := db.DeleteCategoryRule(r.Context(), env.DB, userID, ruleID); err != nil {
			fail(w, r, err, "Failed to delete category rule")
			return
		}
		mutated(env, r, cache.RuleDelete)
		w.WriteHeader(http.StatusNoContent)
	}
}

func ApplyCategoryRules(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		changed, err := db.ApplyCategoryRules(r.Context(), env.DB, userID)
		if err != nil {
			fail(w, r, err, "Failed to apply category rules")
			return
		}
		if changed > 0 {
			mutated(env, r, cache.RuleApply)
		}
		writeJSON(w, http.StatusOK, map[string]int{"updated": changed})
	}
}
