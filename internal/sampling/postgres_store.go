package sampling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hmarstrand/ledgersample/internal/pagination"
)

// PostgresStore persists plans, sample items, and the audit log.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SavePlan(ctx context.Context, plan *Plan, items []SampleItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sampling_plans (
			id, client_id, fiscal_year, test_type, method,
			population_size, population_sum, recommended_sample_size,
			actual_sample_size, coverage_percentage, notes, generated_at,
			seed, confidence_level, risk_level, materiality,
			expected_misstatement, tolerable_deviation_rate,
			expected_deviation_rate, strata_bounds, threshold_amount,
			high_risk_inclusion, high_risk_included,
			selected_standard_numbers, excluded_account_numbers, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)`,
		plan.ID, plan.ClientID, plan.FiscalYear, plan.TestType, plan.Method,
		plan.PopulationSize, plan.PopulationSum, plan.RecommendedSampleSize,
		plan.ActualSampleSize, plan.CoveragePercentage, plan.Notes, plan.GeneratedAt,
		plan.Metadata.Seed, plan.Metadata.ConfidenceLevel, plan.Metadata.RiskLevel,
		plan.Metadata.Materiality, plan.Metadata.ExpectedMisstatement,
		plan.Metadata.TolerableDeviationRate, plan.Metadata.ExpectedDeviationRate,
		pq.Array(plan.Metadata.StrataBounds), plan.Metadata.ThresholdAmount,
		plan.Metadata.HighRiskInclusion, plan.Metadata.HighRiskIncluded,
		pq.Array(plan.Metadata.SelectedStandardNumbers),
		pq.Array(plan.Metadata.ExcludedAccountNumbers), plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sampling_items (
			plan_id, position, transaction_id, amount, risk_score,
			account_number, account_name, transaction_date, description,
			is_high_risk, stratum_id, method
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
	if err != nil {
		return fmt.Errorf("prepare items: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx,
			plan.ID, i, item.TransactionID, item.Amount, item.RiskScore,
			item.AccountNumber, item.AccountName, item.TransactionDate,
			item.Description, item.IsHighRisk, item.StratumID, item.Method,
		); err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id string) (*Plan, []SampleItem, error) {
	plan := &Plan{}
	var strataBounds []float64
	var selected, excluded []string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, fiscal_year, test_type, method,
		       population_size, population_sum, recommended_sample_size,
		       actual_sample_size, coverage_percentage, notes, generated_at,
		       seed, confidence_level, risk_level, materiality,
		       expected_misstatement, tolerable_deviation_rate,
		       expected_deviation_rate, strata_bounds, threshold_amount,
		       high_risk_inclusion, high_risk_included,
		       selected_standard_numbers, excluded_account_numbers, created_at
		FROM sampling_plans WHERE id = $1`, id,
	).Scan(
		&plan.ID, &plan.ClientID, &plan.FiscalYear, &plan.TestType, &plan.Method,
		&plan.PopulationSize, &plan.PopulationSum, &plan.RecommendedSampleSize,
		&plan.ActualSampleSize, &plan.CoveragePercentage, &plan.Notes, &plan.GeneratedAt,
		&plan.Metadata.Seed, &plan.Metadata.ConfidenceLevel, &plan.Metadata.RiskLevel,
		&plan.Metadata.Materiality, &plan.Metadata.ExpectedMisstatement,
		&plan.Metadata.TolerableDeviationRate, &plan.Metadata.ExpectedDeviationRate,
		pq.Array(&strataBounds), &plan.Metadata.ThresholdAmount,
		&plan.Metadata.HighRiskInclusion, &plan.Metadata.HighRiskIncluded,
		pq.Array(&selected), pq.Array(&excluded), &plan.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("select plan: %w", err)
	}
	plan.Metadata.StrataBounds = strataBounds
	plan.Metadata.SelectedStandardNumbers = selected
	plan.Metadata.ExcludedAccountNumbers = excluded

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, amount, risk_score, account_number,
		       account_name, transaction_date, description, is_high_risk,
		       stratum_id, method
		FROM sampling_items WHERE plan_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var items []SampleItem
	for rows.Next() {
		var item SampleItem
		if err := rows.Scan(
			&item.TransactionID, &item.Amount, &item.RiskScore,
			&item.AccountNumber, &item.AccountName, &item.TransactionDate,
			&item.Description, &item.IsHighRisk, &item.StratumID, &item.Method,
		); err != nil {
			return nil, nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate items: %w", err)
	}
	return plan, items, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, clientID string, limit int, cursor *pagination.Cursor) ([]*Plan, error) {
	query := `
		SELECT id, client_id, fiscal_year, test_type, method,
		       population_size, population_sum, recommended_sample_size,
		       actual_sample_size, coverage_percentage, notes, generated_at,
		       seed, confidence_level, risk_level, created_at
		FROM sampling_plans
		WHERE client_id = $1`
	args := []any{clientID}
	if cursor != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		plan := &Plan{}
		if err := rows.Scan(
			&plan.ID, &plan.ClientID, &plan.FiscalYear, &plan.TestType, &plan.Method,
			&plan.PopulationSize, &plan.PopulationSum, &plan.RecommendedSampleSize,
			&plan.ActualSampleSize, &plan.CoveragePercentage, &plan.Notes,
			&plan.GeneratedAt, &plan.Metadata.Seed, &plan.Metadata.ConfidenceLevel,
			&plan.Metadata.RiskLevel, &plan.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

func (s *PostgresStore) WriteAuditLog(ctx context.Context, entry *AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, client_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.ClientID, entry.Action, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
