package db

import (
	"context"
	"fmt"
	"log/slog"

	"finpilot-server/src/finance"
	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, user_id, name, pattern, conditions, category, priority, created_at, updated_at`

func scanRule(row pgx.Row) (*models.CategoryRule, error) {
	var r models.CategoryRule
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Pattern, &r.Conditions, &r.Category, &r.Priority, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func CreateCategoryRule(ctx context.Context, q DBTX, rule *models.CategoryRule) (*models.CategoryRule, error) {
	query := `
		INSERT INTO category_rules (user_id, name, pattern, conditions, category, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + ruleColumns
	var conditions any
	if len(rule.Conditions) > 0 {
		conditions = string(rule.Conditions)
	}
	return scanRule(q.QueryRow(ctx, query, rule.UserID, rule.Name, rule.Pattern, conditions, rule.Category, rule.Priority))
}

// GetCategoryRules returns the user's rules in evaluation order.
func GetCategoryRules(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.CategoryRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM category_rules
		WHERE user_id = $1
		ORDER BY priority, created_at
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.CategoryRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func DeleteCategoryRule(ctx context.Context, q DBTX, userID, ruleID uuid.UUID) error {
	return expectOne(q.Exec(ctx, `DELETE FROM category_rules WHERE id = $1 AND user_id = $2`, ruleID, userID))
}

// ApplyCategoryRules recategorises every transaction of the user that a rule
// matches, first match wins. Categories the user set by hand are kept. It
// returns the number of rows changed.
func ApplyCategoryRules(ctx context.Context, q DBTX, userID uuid.UUID) (int, error) {
	rules, err := GetCategoryRules(ctx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch category rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}
	finance.SortRules(rules)

	txns, err := GetTransactions(ctx, q, userID, models.TransactionFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	changed := 0
	for _, txn := range txns {
		rule, ok := finance.MatchRule(rules, finance.InputFor(txn))
		if !ok || rule.Category == txn.Category {
			continue
		}
		updated, err := setRuleCategory(ctx, q, userID, txn.ID, rule.Category)
		if err != nil {
			return changed, fmt.Errorf("failed to update transaction category: %w", err)
		}
		if !updated {
			continue
		}
		slog.Debug("Category rule applied", "transaction_id", txn.ID, "rule", rule.Name, "from", txn.Category, "to", rule.Category)
		changed++
	}

	slog.Info("Applied category rules", "user_id", userID, "rules", len(rules), "changed", changed)
	return changed, nil
}
