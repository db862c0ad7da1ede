package sampling

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hmarstrand/ledgersample/internal/ledger"
	"github.com/hmarstrand/ledgersample/internal/pagination"
	"github.com/hmarstrand/ledgersample/internal/validation"
)

type countingLedger struct {
	inner *ledger.MemoryStore
	calls int
	err   error
}

func (c *countingLedger) FetchPopulation(ctx context.Context, clientID string, fiscalYear int, opts ledger.FetchOptions) ([]ledger.Transaction, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.FetchPopulation(ctx, clientID, fiscalYear, opts)
}

type mockStore struct {
	savedPlan  *Plan
	savedItems []SampleItem
	saveCalls  int
	saveErr    error

	audits   []*AuditEntry
	auditErr error

	plans []*Plan
}

func (m *mockStore) SavePlan(ctx context.Context, plan *Plan, items []SampleItem) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.savedPlan = plan
	m.savedItems = items
	return nil
}

func (m *mockStore) GetPlan(ctx context.Context, id string) (*Plan, []SampleItem, error) {
	if m.savedPlan != nil && m.savedPlan.ID == id {
		return m.savedPlan, m.savedItems, nil
	}
	return nil, nil, ErrPlanNotFound
}

func (m *mockStore) ListPlans(ctx context.Context, clientID string, limit int, cursor *pagination.Cursor) ([]*Plan, error) {
	var out []*Plan
	for _, p := range m.plans {
		if p.ClientID != clientID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) WriteAuditLog(ctx context.Context, entry *AuditEntry) error {
	if m.auditErr != nil {
		return m.auditErr
	}
	m.audits = append(m.audits, entry)
	return nil
}

func seededLedger(clientID string, n int) *countingLedger {
	txns := make([]ledger.Transaction, n)
	for i := range txns {
		txns[i] = ledger.Transaction{
			ID:              fmt.Sprintf("tx-%d", i),
			TransactionDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i%200),
			AccountNumber:   "6000",
			Description:     "office supplies",
			Amount:          float64(100 + i),
		}
	}
	inner := ledger.NewMemoryStore()
	inner.Load(clientID, txns)
	return &countingLedger{inner: inner}
}

func newTestService(population ledger.Store, store Store) *Service {
	return NewService(population, store, NewPlanCache(time.Minute), 10000)
}

func baseRequest() *Request {
	seed := int64(42)
	return &Request{
		ClientID:   "client-1",
		FiscalYear: 2025,
		TestType:   TestSubstantive,
		Method:     MethodSimpleRandom,
		Seed:       &seed,
	}
}

func TestGeneratePlan_HappyPath(t *testing.T) {
	svc := newTestService(seededLedger("client-1", 500), nil)

	result, err := svc.GeneratePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}

	plan := result.Plan
	if plan.ID == "" {
		t.Error("plan has no id")
	}
	if plan.PopulationSize != 500 {
		t.Errorf("population size = %d, want 500", plan.PopulationSize)
	}
	if plan.RecommendedSampleSize < 30 {
		t.Errorf("recommended size = %d, want >= 30", plan.RecommendedSampleSize)
	}
	if plan.ActualSampleSize != len(result.Sample) {
		t.Errorf("actual size %d does not match sample length %d", plan.ActualSampleSize, len(result.Sample))
	}
	if plan.CoveragePercentage <= 0 || plan.CoveragePercentage > 100 {
		t.Errorf("coverage = %v", plan.CoveragePercentage)
	}
	if plan.Metadata.Seed != 42 {
		t.Errorf("recorded seed = %d, want 42", plan.Metadata.Seed)
	}
	if plan.Notes == "" {
		t.Error("auto-generated plan name missing")
	}

	summary := svc.LastPlan()
	if summary == nil || summary.PlanID != plan.ID {
		t.Error("last plan summary not updated")
	}
}

func TestGeneratePlan_CacheReturnsSamePlan(t *testing.T) {
	store := seededLedger("client-1", 500)
	svc := newTestService(store, nil)

	first, err := svc.GeneratePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.GeneratePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if store.calls != 1 {
		t.Errorf("population fetched %d times, want 1", store.calls)
	}
	if first.Plan.ID != second.Plan.ID {
		t.Errorf("cache returned a different plan: %s vs %s", first.Plan.ID, second.Plan.ID)
	}
}

func TestGeneratePlan_SameSeedSameSample(t *testing.T) {
	a, err := newTestService(seededLedger("client-1", 500), nil).GeneratePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}
	b, err := newTestService(seededLedger("client-1", 500), nil).GeneratePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Sample) != len(b.Sample) {
		t.Fatalf("sample sizes differ: %d vs %d", len(a.Sample), len(b.Sample))
	}
	for i := range a.Sample {
		if a.Sample[i].ID != b.Sample[i].ID {
			t.Fatalf("samples diverge at %d: %s vs %s", i, a.Sample[i].ID, b.Sample[i].ID)
		}
	}
}

func TestGeneratePlan_EmptyPopulation(t *testing.T) {
	svc := newTestService(seededLedger("other-client", 10), nil)

	_, err := svc.GeneratePlan(context.Background(), baseRequest())
	if !errors.Is(err, ErrEmptyPopulation) {
		t.Errorf("err = %v, want ErrEmptyPopulation", err)
	}
}

func TestGeneratePlan_PopulationTooLarge(t *testing.T) {
	store := seededLedger("client-1", 50)
	svc := NewService(store, nil, NewPlanCache(time.Minute), 10)

	_, err := svc.GeneratePlan(context.Background(), baseRequest())
	if !errors.Is(err, ErrPopulationTooLarge) {
		t.Errorf("err = %v, want ErrPopulationTooLarge", err)
	}
}

func TestGeneratePlan_FetchFailure(t *testing.T) {
	store := seededLedger("client-1", 10)
	store.err = errors.New("connection refused")
	svc := newTestService(store, nil)

	_, err := svc.GeneratePlan(context.Background(), baseRequest())
	if !errors.Is(err, ErrPopulationFetch) {
		t.Errorf("err = %v, want ErrPopulationFetch", err)
	}
}

func TestGeneratePlan_Validation(t *testing.T) {
	svc := newTestService(seededLedger("client-1", 10), nil)

	cases := []struct {
		name  string
		edit  func(*Request)
		field string
	}{
		{"missing client", func(r *Request) { r.ClientID = "" }, "clientId"},
		{"bad year", func(r *Request) { r.FiscalYear = 123 }, "fiscalYear"},
		{"bad method", func(r *Request) { r.Method = "quantum" }, "method"},
		{"bad test type", func(r *Request) { r.TestType = "forensic" }, "testType"},
		{"confidence out of range", func(r *Request) { r.ConfidenceLevel = 150 }, "confidenceLevel"},
		{"threshold without amount", func(r *Request) { r.Method = MethodThreshold }, "thresholdAmount"},
		{"negative materiality", func(r *Request) { r.Materiality = -1 }, "materiality"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := baseRequest()
			tc.edit(req)
			_, err := svc.GeneratePlan(context.Background(), req)
			var verrs validation.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("err = %v, want validation errors", err)
			}
			found := false
			for _, ve := range verrs {
				if ve.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tc.field, verrs)
			}
		})
	}
}

func TestGeneratePlan_SaveWithoutStore(t *testing.T) {
	svc := newTestService(seededLedger("client-1", 100), nil)

	req := baseRequest()
	req.Save = true
	_, err := svc.GeneratePlan(context.Background(), req)
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Errorf("err = %v, want ErrPersistenceUnavailable", err)
	}
}

func TestGeneratePlan_SavePersistsPlanAndItems(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(seededLedger("client-1", 100), store)

	req := baseRequest()
	req.Save = true
	result, err := svc.GeneratePlan(context.Background(), req)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}

	if store.saveCalls != 1 {
		t.Fatalf("SavePlan called %d times", store.saveCalls)
	}
	if store.savedPlan.ID != result.Plan.ID {
		t.Error("persisted plan differs from returned plan")
	}
	if len(store.savedItems) != len(result.Sample) {
		t.Errorf("persisted %d items, sample has %d", len(store.savedItems), len(result.Sample))
	}
	for i, item := range store.savedItems {
		if item.TransactionID != result.Sample[i].ID {
			t.Fatalf("item %d references %s, sample has %s", i, item.TransactionID, result.Sample[i].ID)
		}
	}
	if len(store.audits) != 1 || store.audits[0].Action != "plan_saved" {
		t.Errorf("audit entries = %+v", store.audits)
	}
}

func TestGeneratePlan_SavedPlanNotCached(t *testing.T) {
	store := &mockStore{}
	population := seededLedger("client-1", 100)
	svc := newTestService(population, store)

	req := baseRequest()
	req.Save = true
	if _, err := svc.GeneratePlan(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GeneratePlan(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	if population.calls != 2 {
		t.Errorf("save requests should bypass the cache, fetches = %d", population.calls)
	}
	if store.saveCalls != 2 {
		t.Errorf("SavePlan calls = %d, want 2", store.saveCalls)
	}
}

func TestGeneratePlan_AuditFailureIsNonFatal(t *testing.T) {
	store := &mockStore{auditErr: errors.New("audit table locked")}
	svc := newTestService(seededLedger("client-1", 100), store)

	req := baseRequest()
	req.Save = true
	if _, err := svc.GeneratePlan(context.Background(), req); err != nil {
		t.Fatalf("audit failure surfaced: %v", err)
	}
	if store.saveCalls != 1 {
		t.Error("plan was not saved")
	}
}

func TestGeneratePlan_SaveFailure(t *testing.T) {
	store := &mockStore{saveErr: errors.New("disk full")}
	svc := newTestService(seededLedger("client-1", 100), store)

	req := baseRequest()
	req.Save = true
	if _, err := svc.GeneratePlan(context.Background(), req); err == nil {
		t.Error("save failure should surface")
	}
}

func TestGeneratePlan_HighRiskInclusion(t *testing.T) {
	txns := []ledger.Transaction{
		// base 0.1 + amount 0.3 + revenue account 0.25 + keyword 0.2 = 0.85
		{ID: "hot", TransactionDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			AccountNumber: "3000", Description: "loan interest accrual", Amount: 60000},
	}
	for i := 0; i < 200; i++ {
		txns = append(txns, ledger.Transaction{
			ID:              fmt.Sprintf("cold-%d", i),
			TransactionDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			AccountNumber:   "6000",
			Description:     "office supplies",
			Amount:          50,
		})
	}
	inner := ledger.NewMemoryStore()
	inner.Load("client-1", txns)
	svc := newTestService(&countingLedger{inner: inner}, nil)

	req := baseRequest()
	req.Materiality = 100000
	req.UseHighRiskInclusion = true

	result, err := svc.GeneratePlan(context.Background(), req)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}

	found := false
	for _, tx := range result.Sample {
		if tx.ID == "hot" {
			found = true
			if tx.RiskScore <= HighRiskThreshold {
				t.Errorf("hot transaction score = %v", tx.RiskScore)
			}
		}
	}
	if !found {
		t.Error("high-risk transaction not force-included")
	}
	if result.Plan.Metadata.HighRiskIncluded != 1 {
		t.Errorf("HighRiskIncluded = %d, want 1", result.Plan.Metadata.HighRiskIncluded)
	}
}

func TestPreviewSize(t *testing.T) {
	svc := newTestService(seededLedger("client-1", 10), nil)

	req := &Request{
		TestType:             TestSubstantive,
		PopulationSize:       1200,
		PopulationSum:        1_000_000,
		Materiality:          20000,
		ExpectedMisstatement: 2000,
		ConfidenceLevel:      95,
	}
	size, err := svc.PreviewSize(req)
	if err != nil {
		t.Fatalf("PreviewSize: %v", err)
	}
	if size != 155 {
		t.Errorf("size = %d, want 155", size)
	}

	if _, err := svc.PreviewSize(&Request{TestType: TestSubstantive}); err == nil {
		t.Error("missing population size should fail validation")
	}
}

func TestGetPlan_NoStore(t *testing.T) {
	svc := newTestService(seededLedger("client-1", 10), nil)
	if _, _, err := svc.GetPlan(context.Background(), "plan_x"); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Errorf("err = %v, want ErrPersistenceUnavailable", err)
	}
}

func TestListPlans_Paging(t *testing.T) {
	store := &mockStore{}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.plans = append(store.plans, &Plan{
			ID:        fmt.Sprintf("plan_%d", i),
			ClientID:  "client-1",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}
	svc := newTestService(seededLedger("client-1", 10), store)

	page, next, hasMore, err := svc.ListPlans(context.Background(), "client-1", 3, "")
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(page) != 3 {
		t.Errorf("page size = %d, want 3", len(page))
	}
	if !hasMore || next == "" {
		t.Errorf("hasMore = %v, next = %q", hasMore, next)
	}

	if _, _, _, err := svc.ListPlans(context.Background(), "client-1", 3, "not-a-cursor"); err == nil {
		t.Error("invalid cursor should fail")
	}
}
