package db

import (
	"context"
	"fmt"
	"strings"

	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `
	t.id, t.user_id, t.account_id, t.plaid_transaction_id, t.amount, t.name, t.merchant_name,
	COALESCE(a.name, ''), t.category, t.date, t.pending, t.roundup_swept, t.created_at`

const transactionFrom = `
	FROM transactions t
	LEFT JOIN connected_accounts a ON a.id = t.account_id`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.PlaidTransactionID, &t.Amount, &t.Name, &t.MerchantName,
		&t.AccountName, &t.Category, &t.Date, &t.Pending, &t.RoundupSwept, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func collectTransactions(rows pgx.Rows, err error) ([]models.Transaction, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// GetTransactions returns a page of the user's transactions, newest first.
func GetTransactions(ctx context.Context, q DBTX, userID uuid.UUID, f models.TransactionFilter) ([]models.Transaction, error) {
	where := []string{"t.user_id = $1"}
	args := []any{userID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.AccountID != nil {
		add("t.account_id = $%d", *f.AccountID)
	}
	if f.Category != "" {
		add("t.category = $%d", f.Category)
	}
	if f.From != nil {
		add("t.date >= $%d", *f.From)
	}
	if f.To != nil {
		add("t.date <= $%d", *f.To)
	}

	query := `SELECT ` + transactionColumns + transactionFrom + `
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.date DESC, t.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	return collectTransactions(q.Query(ctx, query, args...))
}

func GetTransactionByID(ctx context.Context, q DBTX, userID, txnID uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + transactionFrom + ` WHERE t.id = $1 AND t.user_id = $2`
	return scanTransaction(q.QueryRow(ctx, query, txnID, userID))
}

// GetUnsweptDebits returns settled debits not yet included in a round-up sweep.
func GetUnsweptDebits(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + transactionFrom + `
		WHERE t.user_id = $1 AND NOT t.pending AND NOT t.roundup_swept AND t.amount > 0
		ORDER BY t.date`
	return collectTransactions(q.Query(ctx, query, userID))
}

// CreateTransaction inserts a manual transaction. Manual transactions have
// no account and no Plaid id.
func CreateTransaction(ctx context.Context, q DBTX, txn *models.Transaction) (*models.Transaction, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, name, merchant_name, category, date, pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, txn.UserID, txn.Amount, txn.Name, txn.MerchantName, txn.Category, txn.Date, txn.Pending).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return GetTransactionByID(ctx, q, txn.UserID, id)
}

// UpdateTransactionCategory sets a category chosen by the user and locks it,
// so later syncs and rule runs leave it alone.
func UpdateTransactionCategory(ctx context.Context, q DBTX, userID, txnID uuid.UUID, category string) error {
	return expectOne(q.Exec(ctx,
		`UPDATE transactions SET category = $1, category_locked = TRUE WHERE id = $2 AND user_id = $3`,
		category, txnID, userID))
}

// setRuleCategory recategorises an unlocked row and reports whether it did.
func setRuleCategory(ctx context.Context, q DBTX, userID, txnID uuid.UUID, category string) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE transactions SET category = $1 WHERE id = $2 AND user_id = $3 AND NOT category_locked`,
		category, txnID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func DeleteTransaction(ctx context.Context, q DBTX, userID, txnID uuid.UUID) error {
	return expectOne(q.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, txnID, userID))
}

// MarkTransactionsSwept flags ids as swept and returns how many rows changed.
// Rows already swept are left alone so a transaction is never swept twice.
func MarkTransactionsSwept(ctx context.Context, q DBTX, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE transactions SET roundup_swept = TRUE
		WHERE user_id = $1 AND id = ANY($2::uuid[]) AND NOT roundup_swept
	`, userID, uuidStrings(ids))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
