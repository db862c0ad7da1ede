package ledger

import (
	"context"
	"testing"
	"time"
)

func txn(id, account string, date time.Time, amount float64) Transaction {
	return Transaction{
		ID:              id,
		TransactionDate: date,
		AccountNumber:   account,
		AccountName:     "Account " + account,
		Description:     "test line",
		Amount:          amount,
	}
}

func TestFetchPopulation_FiscalYearBounds(t *testing.T) {
	store := NewMemoryStore()
	store.Load("client-1", []Transaction{
		txn("t1", "3000", time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), 100),
		txn("t2", "3000", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 200),
		txn("t3", "3000", time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC), 300),
		txn("t4", "3000", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 400),
	})

	got, err := store.FetchPopulation(context.Background(), "client-1", 2025, FetchOptions{})
	if err != nil {
		t.Fatalf("FetchPopulation: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions in fiscal 2025, got %d", len(got))
	}
	if got[0].ID != "t2" || got[1].ID != "t3" {
		t.Errorf("unexpected transactions: %v", got)
	}
}

func TestFetchPopulation_UnknownClient(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.FetchPopulation(context.Background(), "nobody", 2025, FetchOptions{})
	if err != nil {
		t.Fatalf("FetchPopulation: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty population for unknown client, got %d", len(got))
	}
}

func TestFetchPopulation_ExcludedAccounts(t *testing.T) {
	store := NewMemoryStore()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.Load("client-1", []Transaction{
		txn("t1", "1500", date, 100),
		txn("t2", "2400", date, -50),
		txn("t3", "1500", date, 75),
	})

	got, err := store.FetchPopulation(context.Background(), "client-1", 2025, FetchOptions{
		ExcludedAccountNumbers: []string{"1500"},
	})
	if err != nil {
		t.Fatalf("FetchPopulation: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t2" {
		t.Errorf("expected only t2, got %v", got)
	}
}

func TestFetchPopulation_StandardFilter(t *testing.T) {
	store := NewMemoryStore()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.Load("client-1", []Transaction{
		txn("t1", "3000", date, 100),
		txn("t2", "6700", date, -50),
	})
	store.MapStandard("3000", "30")
	store.MapStandard("6700", "67")

	got, err := store.FetchPopulation(context.Background(), "client-1", 2025, FetchOptions{
		SelectedStandardNumbers: []string{"30"},
	})
	if err != nil {
		t.Fatalf("FetchPopulation: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("expected only t1, got %v", got)
	}
}

func TestFetchPopulation_Limit(t *testing.T) {
	store := NewMemoryStore()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.Load("client-1", []Transaction{
		txn("t1", "3000", date, 1),
		txn("t2", "3000", date, 2),
		txn("t3", "3000", date, 3),
	})

	got, err := store.FetchPopulation(context.Background(), "client-1", 2025, FetchOptions{Limit: 2})
	if err != nil {
		t.Fatalf("FetchPopulation: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(got))
	}
}
