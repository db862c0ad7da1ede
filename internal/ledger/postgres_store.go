package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed population store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FetchPopulation queries the client's transactions for the fiscal year,
// joined with chart-of-accounts metadata. Amounts use the debit-positive
// convention: COALESCE(debit_amount, -credit_amount).
func (p *PostgresStore) FetchPopulation(ctx context.Context, clientID string, fiscalYear int, opts FetchOptions) ([]Transaction, error) {
	start, end := FiscalYearRange(fiscalYear)

	query := `
		SELECT t.id, t.transaction_date, a.account_number, a.account_name,
			t.description,
			COALESCE(t.debit_amount, -t.credit_amount) AS amount
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.client_id = $1
		  AND t.transaction_date >= $2
		  AND t.transaction_date < $3`
	args := []interface{}{clientID, start, end}

	if len(opts.ExcludedAccountNumbers) > 0 {
		args = append(args, pq.Array(opts.ExcludedAccountNumbers))
		query += fmt.Sprintf(" AND a.account_number <> ALL($%d)", len(args))
	}
	if len(opts.SelectedStandardNumbers) > 0 {
		args = append(args, pq.Array(opts.SelectedStandardNumbers))
		query += fmt.Sprintf(" AND a.standard_number = ANY($%d)", len(args))
	}

	query += " ORDER BY t.transaction_date, t.id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch population: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.TransactionDate, &tx.AccountNumber,
			&tx.AccountName, &tx.Description, &tx.Amount); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate population: %w", err)
	}

	return result, nil
}
