// Package ledger provides read access to client transaction populations.
//
// The sampling engine treats the general ledger as an external collaborator:
// it only ever queries transactions for a client's fiscal year, joined with
// chart-of-accounts metadata. Amounts follow the debit-positive convention:
// amount = debit if present, else -credit.
package ledger

import (
	"context"
	"time"
)

// Transaction is a single general-ledger line joined with account metadata.
type Transaction struct {
	ID              string    `json:"id"`
	TransactionDate time.Time `json:"transactionDate"`
	AccountNumber   string    `json:"accountNumber"`
	AccountName     string    `json:"accountName"`
	Description     string    `json:"description"`
	Amount          float64   `json:"amount"` // debit positive, credit negative
	RiskScore       float64   `json:"riskScore"`
}

// FetchOptions narrows a population query.
type FetchOptions struct {
	// SelectedStandardNumbers restricts the population to accounts mapped to
	// these chart-of-accounts standard codes. Empty means all.
	SelectedStandardNumbers []string
	// ExcludedAccountNumbers removes specific accounts from the population.
	ExcludedAccountNumbers []string
	// Limit caps the number of transactions fetched; 0 means no cap.
	Limit int
}

// Store fetches transaction populations for sampling.
type Store interface {
	// FetchPopulation returns all transactions for the client dated within
	// the fiscal year (Jan 1 through Dec 31), honoring the filter options.
	FetchPopulation(ctx context.Context, clientID string, fiscalYear int, opts FetchOptions) ([]Transaction, error)
}

// FiscalYearRange returns the inclusive start and exclusive end of a fiscal year.
func FiscalYearRange(fiscalYear int) (start, end time.Time) {
	start = time.Date(fiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(1, 0, 0)
	return start, end
}
