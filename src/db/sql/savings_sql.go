package db

import (
	"context"
	"errors"
	"fmt"

	"finpilot-server/src/finance"
	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const goalColumns = `id, user_id, name, target_amount, current_amount, target_date, completed_at, created_at`

func scanGoal(row pgx.Row) (*models.Goal, error) {
	var g models.Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.TargetDate, &g.CompletedAt, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func CreateGoal(ctx context.Context, q DBTX, goal *models.Goal) (*models.Goal, error) {
	query := `
		INSERT INTO goals (user_id, name, target_amount, target_date)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + goalColumns
	return scanGoal(q.QueryRow(ctx, query, goal.UserID, goal.Name, goal.TargetAmount, goal.TargetDate))
}

func GetGoals(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.Goal, error) {
	rows, err := q.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// ContributeToGoal adds amount to the goal and stamps completed_at the first
// time the target is reached.
func ContributeToGoal(ctx context.Context, q DBTX, userID, goalID uuid.UUID, amount decimal.Decimal) (*models.Goal, error) {
	query := `
		UPDATE goals
		SET current_amount = current_amount + $1,
			completed_at = CASE
				WHEN completed_at IS NULL AND current_amount + $1 >= target_amount THEN NOW()
				ELSE completed_at
			END
		WHERE id = $2 AND user_id = $3
		RETURNING ` + goalColumns
	return scanGoal(q.QueryRow(ctx, query, amount, goalID, userID))
}

func DeleteGoal(ctx context.Context, q DBTX, userID, goalID uuid.UUID) error {
	return expectOne(q.Exec(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID))
}

const potColumns = `id, user_id, name, balance, created_at`

func scanPot(row pgx.Row) (*models.Pot, error) {
	var p models.Pot
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Balance, &p.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func CreatePot(ctx context.Context, q DBTX, pot *models.Pot) (*models.Pot, error) {
	query := `INSERT INTO pots (user_id, name) VALUES ($1, $2) RETURNING ` + potColumns
	return scanPot(q.QueryRow(ctx, query, pot.UserID, pot.Name))
}

func GetPots(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.Pot, error) {
	rows, err := q.Query(ctx, `SELECT `+potColumns+` FROM pots WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pots := []models.Pot{}
	for rows.Next() {
		p, err := scanPot(rows)
		if err != nil {
			return nil, err
		}
		pots = append(pots, *p)
	}
	return pots, rows.Err()
}

// AdjustPotBalance adds delta, which may be negative, to the pot balance.
// A withdrawal larger than the balance fails with ErrInsufficientFunds.
func AdjustPotBalance(ctx context.Context, q DBTX, userID, potID uuid.UUID, delta decimal.Decimal) (*models.Pot, error) {
	query := `
		UPDATE pots SET balance = balance + $1
		WHERE id = $2 AND user_id = $3 AND balance + $1 >= 0
		RETURNING ` + potColumns
	pot, err := scanPot(q.QueryRow(ctx, query, delta, potID, userID))
	if errors.Is(err, ErrNotFound) {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pots WHERE id = $1 AND user_id = $2)`, potID, userID).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrInsufficientFunds
		}
	}
	return pot, err
}

const debtColumns = `id, user_id, name, balance, apr, minimum_payment, paid_off_at, created_at`

func scanDebt(row pgx.Row) (*models.Debt, error) {
	var d models.Debt
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Balance, &d.APR, &d.MinimumPayment, &d.PaidOffAt, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func CreateDebt(ctx context.Context, q DBTX, debt *models.Debt) (*models.Debt, error) {
	query := `
		INSERT INTO debts (user_id, name, balance, apr, minimum_payment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + debtColumns
	return scanDebt(q.QueryRow(ctx, query, debt.UserID, debt.Name, debt.Balance, debt.APR, debt.MinimumPayment))
}

func GetDebts(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.Debt, error) {
	rows, err := q.Query(ctx, `SELECT `+debtColumns+` FROM debts WHERE user_id = $1 ORDER BY apr DESC, created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debts := []models.Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, *d)
	}
	return debts, rows.Err()
}

// PayDebt reduces the balance by amount, never below zero, and stamps
// paid_off_at when it reaches zero.
func PayDebt(ctx context.Context, q DBTX, userID, debtID uuid.UUID, amount decimal.Decimal) (*models.Debt, error) {
	query := `
		UPDATE debts
		SET balance = GREATEST(balance - $1, 0),
			paid_off_at = CASE
				WHEN paid_off_at IS NULL AND balance - $1 <= 0 THEN NOW()
				ELSE paid_off_at
			END
		WHERE id = $2 AND user_id = $3
		RETURNING ` + debtColumns
	return scanDebt(q.QueryRow(ctx, query, amount, debtID, userID))
}

// RecordRoundupSweep deposits the sweep into its pot, marks the transactions
// swept and stores the sweep. Run it inside a transaction.
func RecordRoundupSweep(ctx context.Context, tx pgx.Tx, sweep *models.RoundupSweep) (*models.RoundupSweep, error) {
	marked, err := MarkTransactionsSwept(ctx, tx, sweep.UserID, sweep.TransactionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transactions swept: %w", err)
	}
	if int(marked) != len(sweep.TransactionIDs) {
		return nil, fmt.Errorf("expected to sweep %d transactions, swept %d", len(sweep.TransactionIDs), marked)
	}

	if _, err := AdjustPotBalance(ctx, tx, sweep.UserID, sweep.PotID, sweep.Amount); err != nil {
		return nil, fmt.Errorf("failed to deposit round-ups: %w", err)
	}

	out := *sweep
	err = tx.QueryRow(ctx, `
		INSERT INTO roundup_sweeps (user_id, pot_id, amount, transaction_ids)
		VALUES ($1, $2, $3, $4::uuid[])
		RETURNING id, created_at
	`, sweep.UserID, sweep.PotID, sweep.Amount, uuidStrings(sweep.TransactionIDs)).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record sweep: %w", err)
	}
	return &out, nil
}

func GetBalanceTotals(ctx context.Context, q DBTX, userID uuid.UUID) (finance.BalanceTotals, error) {
	var t finance.BalanceTotals
	err := q.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(current_balance) FROM connected_accounts
				WHERE user_id = $1 AND type NOT IN ('credit', 'loan')), 0),
			COALESCE((SELECT SUM(current_balance) FROM connected_accounts
				WHERE user_id = $1 AND type IN ('credit', 'loan')), 0),
			COALESCE((SELECT SUM(balance) FROM pots WHERE user_id = $1), 0),
			COALESCE((SELECT SUM(balance) FROM debts WHERE user_id = $1 AND paid_off_at IS NULL), 0)
	`, userID).Scan(&t.Cash, &t.Credit, &t.Pots, &t.Debts)
	return t, err
}
