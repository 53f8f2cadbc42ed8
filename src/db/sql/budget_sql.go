package db

import (
	"context"

	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const budgetColumns = `id, user_id, category, amount, period, created_at, updated_at`

func scanBudget(row pgx.Row) (*models.Budget, error) {
	var b models.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func CreateBudget(ctx context.Context, q DBTX, budget *models.Budget) (*models.Budget, error) {
	query := `
		INSERT INTO budgets (user_id, category, amount, period)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + budgetColumns
	return scanBudget(q.QueryRow(ctx, query, budget.UserID, budget.Category, budget.Amount, budget.Period))
}

func GetBudgetByID(ctx context.Context, q DBTX, userID, budgetID uuid.UUID) (*models.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1 AND user_id = $2`
	return scanBudget(q.QueryRow(ctx, query, budgetID, userID))
}

func GetAllBudgetsForUser(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.Budget, error) {
	query := `
		SELECT ` + budgetColumns + `
		FROM budgets WHERE user_id = $1
		ORDER BY category, period
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := []models.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func UpdateBudget(ctx context.Context, q DBTX, budget *models.Budget) (*models.Budget, error) {
	query := `
		UPDATE budgets
		SET category = $1, amount = $2, period = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING ` + budgetColumns
	return scanBudget(q.QueryRow(ctx, query, budget.Category, budget.Amount, budget.Period, budget.ID, budget.UserID))
}

func DeleteBudget(ctx context.Context, q DBTX, userID, budgetID uuid.UUID) error {
	return expectOne(q.Exec(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, budgetID, userID))
}
