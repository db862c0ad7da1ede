package ledger

import (
	"context"
	"sync"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory population store for demo/development mode
// and tests. Transactions are loaded up front via Load.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string][]Transaction // clientID → transactions
	standards    map[string]string        // accountNumber → standard number
}

// NewMemoryStore creates an empty in-memory population store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string][]Transaction),
		standards:    make(map[string]string),
	}
}

// Load replaces the stored transactions for a client.
func (m *MemoryStore) Load(clientID string, txns []Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Transaction, len(txns))
	copy(cp, txns)
	m.transactions[clientID] = cp
}

// MapStandard associates an account number with a standard classification code.
func (m *MemoryStore) MapStandard(accountNumber, standardNumber string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.standards[accountNumber] = standardNumber
}

func (m *MemoryStore) FetchPopulation(ctx context.Context, clientID string, fiscalYear int, opts FetchOptions) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// An unknown client yields an empty population, same as the SQL query
	// matching zero rows.
	txns := m.transactions[clientID]

	excluded := make(map[string]bool, len(opts.ExcludedAccountNumbers))
	for _, acc := range opts.ExcludedAccountNumbers {
		excluded[acc] = true
	}
	selected := make(map[string]bool, len(opts.SelectedStandardNumbers))
	for _, std := range opts.SelectedStandardNumbers {
		selected[std] = true
	}

	start, end := FiscalYearRange(fiscalYear)

	result := make([]Transaction, 0, len(txns))
	for _, tx := range txns {
		if tx.TransactionDate.Before(start) || !tx.TransactionDate.Before(end) {
			continue
		}
		if excluded[tx.AccountNumber] {
			continue
		}
		if len(selected) > 0 && !selected[m.standards[tx.AccountNumber]] {
			continue
		}
		result = append(result, tx)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}

	return result, nil
}
