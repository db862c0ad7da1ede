package sampling

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hmarstrand/ledgersample/internal/idgen"
	"github.com/hmarstrand/ledgersample/internal/ledger"
	"github.com/hmarstrand/ledgersample/internal/logging"
	"github.com/hmarstrand/ledgersample/internal/metrics"
	"github.com/hmarstrand/ledgersample/internal/pagination"
	"github.com/hmarstrand/ledgersample/internal/traces"
	"github.com/hmarstrand/ledgersample/internal/validation"
)

// Service orchestrates plan generation: validate, check the cache, fetch the
// population, score, size, select, and optionally persist.
type Service struct {
	population    ledger.Store
	store         Store
	cache         *PlanCache
	maxPopulation int
	now           func() time.Time

	mu       sync.Mutex
	lastPlan *PlanSummary
}

// PlanSummary is the health-endpoint view of the most recent plan.
type PlanSummary struct {
	PlanID      string    `json:"planId"`
	Method      Method    `json:"method"`
	SampleSize  int       `json:"sampleSize"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// NewService wires the orchestrator. store may be nil when no database is
// configured; Save requests then fail with ErrPersistenceUnavailable.
func NewService(population ledger.Store, store Store, cache *PlanCache, maxPopulation int) *Service {
	if cache == nil {
		cache = NewPlanCache(DefaultCacheTTL)
	}
	return &Service{
		population:    population,
		store:         store,
		cache:         cache,
		maxPopulation: maxPopulation,
		now:           time.Now,
	}
}

// GeneratePlan runs one sampling request end to end.
func (s *Service) GeneratePlan(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "sampling.GeneratePlan",
		attribute.String("client_id", req.ClientID),
		attribute.Int("fiscal_year", req.FiscalYear),
		attribute.String("method", string(req.Method)),
	)
	defer span.End()

	if errs := validateRequest(req); len(errs) > 0 {
		return nil, errs
	}

	key := CacheKey(req)
	if !req.Save {
		if cached, ok := s.cache.Get(key); ok {
			metrics.PlanCacheHitsTotal.Inc()
			logging.L(ctx).Debug("plan cache hit", "client_id", req.ClientID, "plan_id", cached.Plan.ID)
			return cached, nil
		}
		metrics.PlanCacheMissesTotal.Inc()
	}

	start := s.now()

	population, err := s.population.FetchPopulation(ctx, req.ClientID, req.FiscalYear, ledger.FetchOptions{
		SelectedStandardNumbers: req.SelectedStandardNumbers,
		ExcludedAccountNumbers:  req.ExcludedAccountNumbers,
		Limit:                   s.maxPopulation + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPopulationFetch, err)
	}
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}
	if len(population) > s.maxPopulation {
		return nil, fmt.Errorf("%w: %d transactions, maximum %d", ErrPopulationTooLarge, len(population), s.maxPopulation)
	}
	metrics.PopulationSize.Observe(float64(len(population)))

	population = scorePopulation(population, req.Materiality)

	popSize := len(population)
	popSum := 0.0
	for _, tx := range population {
		popSum += math.Abs(tx.Amount)
	}

	recommended, err := RecommendedSize(req, popSize, popSum)
	if err != nil {
		return nil, err
	}

	seed := s.now().UnixMilli()
	if req.Seed != nil {
		seed = *req.Seed
	}

	sample, highRiskIncluded, err := s.selectSample(req, population, recommended, seed)
	if err != nil {
		return nil, err
	}

	coverage := 0.0
	if popSum > 0 {
		sampleSum := 0.0
		for _, tx := range sample {
			sampleSum += math.Abs(tx.Amount)
		}
		coverage = math.Round(sampleSum/popSum*100*100) / 100
	}

	generatedAt := s.now()
	method := req.Method
	if method == "" {
		method = MethodSimpleRandom
	}
	name := req.PlanName
	if name == "" {
		name = fmt.Sprintf("%s %s", method.DisplayName(), generatedAt.Format("2006-01-02, 15:04"))
	}

	plan := &Plan{
		ID:                    idgen.WithPrefix("plan_"),
		ClientID:              req.ClientID,
		FiscalYear:            req.FiscalYear,
		TestType:              req.TestType,
		Method:                method,
		PopulationSize:        popSize,
		PopulationSum:         popSum,
		RecommendedSampleSize: recommended,
		ActualSampleSize:      len(sample),
		CoveragePercentage:    coverage,
		Notes:                 validation.SanitizeString(name, validation.MaxStringLength),
		GeneratedAt:           generatedAt,
		Metadata: PlanMetadata{
			Seed:                    seed,
			ConfidenceLevel:         confidenceOrDefault(req.ConfidenceLevel),
			RiskLevel:               req.RiskLevel,
			Materiality:             req.Materiality,
			ExpectedMisstatement:    req.ExpectedMisstatement,
			TolerableDeviationRate:  req.TolerableDeviationRate,
			ExpectedDeviationRate:   req.ExpectedDeviationRate,
			StrataBounds:            req.StrataBounds,
			ThresholdAmount:         req.ThresholdAmount,
			HighRiskInclusion:       req.UseHighRiskInclusion,
			HighRiskIncluded:        highRiskIncluded,
			SelectedStandardNumbers: req.SelectedStandardNumbers,
			ExcludedAccountNumbers:  req.ExcludedAccountNumbers,
		},
		CreatedAt: generatedAt,
	}

	result := &Result{Plan: plan, Sample: sample}

	if req.Save {
		if s.store == nil {
			return nil, ErrPersistenceUnavailable
		}
		items := buildSampleItems(plan, sample)
		if err := s.store.SavePlan(ctx, plan, items); err != nil {
			return nil, fmt.Errorf("save plan: %w", err)
		}
		metrics.PlansSavedTotal.Inc()
		s.audit(ctx, req.ClientID, "plan_saved",
			fmt.Sprintf("plan %s: %s, %d of %d transactions", plan.ID, method, len(sample), popSize))
	} else {
		s.cache.Set(key, result)
	}

	metrics.PlansGeneratedTotal.WithLabelValues(string(method)).Inc()
	metrics.SamplingDuration.WithLabelValues(string(method)).Observe(s.now().Sub(start).Seconds())

	s.mu.Lock()
	s.lastPlan = &PlanSummary{
		PlanID:      plan.ID,
		Method:      method,
		SampleSize:  len(sample),
		GeneratedAt: generatedAt,
	}
	s.mu.Unlock()

	logging.L(ctx).Info("sampling plan generated",
		"plan_id", plan.ID,
		"client_id", req.ClientID,
		"method", method,
		"population_size", popSize,
		"sample_size", len(sample),
		"coverage_pct", coverage,
		"saved", req.Save,
	)
	return result, nil
}

// selectSample applies high-risk pre-inclusion and then the configured
// selector over the remaining transactions.
func (s *Service) selectSample(req *Request, population []ledger.Transaction, targetSize int, seed int64) ([]ledger.Transaction, int, error) {
	selector, err := selectorFor(req)
	if err != nil {
		return nil, 0, err
	}
	rng := NewRNG(seed)

	if !req.UseHighRiskInclusion {
		return selector.Select(population, targetSize, rng), 0, nil
	}

	var highRisk, rest []ledger.Transaction
	for _, tx := range population {
		if tx.RiskScore > HighRiskThreshold {
			highRisk = append(highRisk, tx)
		} else {
			rest = append(rest, tx)
		}
	}

	// High-risk transactions bypass selection entirely, even when that
	// overshoots the recommended size.
	sample := append([]ledger.Transaction(nil), highRisk...)
	if remaining := targetSize - len(highRisk); remaining > 0 && len(rest) > 0 {
		sample = append(sample, selector.Select(rest, remaining, rng)...)
	}
	return sample, len(highRisk), nil
}

// PreviewSize computes the recommended sample size from caller-supplied
// aggregates without touching the ledger.
func (s *Service) PreviewSize(req *Request) (int, error) {
	errs := validation.Validate(
		validation.PositiveInt("populationSize", req.PopulationSize),
	)
	if req.ConfidenceLevel != 0 {
		if err := validation.Percentage("confidenceLevel", req.ConfidenceLevel)(); err != nil {
			errs = append(errs, *err)
		}
	}
	if len(errs) > 0 {
		return 0, errs
	}
	return RecommendedSize(req, req.PopulationSize, req.PopulationSum)
}

// GetPlan loads a persisted plan with its sample items.
func (s *Service) GetPlan(ctx context.Context, id string) (*Plan, []SampleItem, error) {
	if s.store == nil {
		return nil, nil, ErrPersistenceUnavailable
	}
	return s.store.GetPlan(ctx, id)
}

// ListPlans returns one page of a client's persisted plans, newest first.
func (s *Service) ListPlans(ctx context.Context, clientID string, limit int, cursorStr string) ([]*Plan, string, bool, error) {
	if s.store == nil {
		return nil, "", false, ErrPersistenceUnavailable
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var cursor *pagination.Cursor
	if cursorStr != "" {
		c, err := pagination.Decode(cursorStr)
		if err != nil {
			return nil, "", false, validation.ValidationErrors{{Field: "cursor", Message: "is not a valid cursor"}}
		}
		cursor = c
	}

	plans, err := s.store.ListPlans(ctx, clientID, limit+1, cursor)
	if err != nil {
		return nil, "", false, fmt.Errorf("list plans: %w", err)
	}
	page, next, hasMore := pagination.ComputePage(plans, limit, func(p *Plan) (time.Time, string) {
		return p.CreatedAt, p.ID
	})
	return page, next, hasMore, nil
}

// LastPlan reports the most recent plan generated by this process.
func (s *Service) LastPlan() *PlanSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPlan
}

func (s *Service) audit(ctx context.Context, clientID, action, detail string) {
	if s.store == nil {
		return
	}
	entry := &AuditEntry{
		ID:        idgen.WithPrefix("audit_"),
		ClientID:  clientID,
		Action:    action,
		Detail:    detail,
		CreatedAt: s.now(),
	}
	if err := s.store.WriteAuditLog(ctx, entry); err != nil {
		logging.L(ctx).Warn("audit log write failed", "action", action, "error", err)
	}
}

func validateRequest(req *Request) validation.ValidationErrors {
	errs := validation.Validate(
		validation.Required("clientId", req.ClientID),
		validation.FiscalYear("fiscalYear", req.FiscalYear),
	)
	if req.TestType != "" {
		if err := validation.OneOf("testType", string(req.TestType), string(TestSubstantive), string(TestControl))(); err != nil {
			errs = append(errs, *err)
		}
	}
	if req.Method != "" {
		if err := validation.OneOf("method", string(req.Method),
			string(MethodSimpleRandom), string(MethodSystematic), string(MethodMonetaryUnit),
			string(MethodStratified), string(MethodThreshold))(); err != nil {
			errs = append(errs, *err)
		}
	}
	if req.ConfidenceLevel != 0 {
		if err := validation.Percentage("confidenceLevel", req.ConfidenceLevel)(); err != nil {
			errs = append(errs, *err)
		}
	}
	if req.TolerableDeviationRate != 0 {
		if err := validation.Percentage("tolerableDeviationRate", req.TolerableDeviationRate)(); err != nil {
			errs = append(errs, *err)
		}
	}
	if req.ExpectedDeviationRate < 0 || req.ExpectedDeviationRate >= 100 {
		errs = append(errs, validation.ValidationError{Field: "expectedDeviationRate", Message: "must be a percentage below 100"})
	}
	if req.Materiality < 0 {
		errs = append(errs, validation.ValidationError{Field: "materiality", Message: "must not be negative"})
	}
	if req.ThresholdAmount < 0 {
		errs = append(errs, validation.ValidationError{Field: "thresholdAmount", Message: "must not be negative"})
	}
	if req.Method == MethodThreshold && req.ThresholdAmount == 0 {
		errs = append(errs, validation.ValidationError{Field: "thresholdAmount", Message: "is required for threshold sampling"})
	}
	for i, bound := range req.StrataBounds {
		if bound <= 0 {
			errs = append(errs, validation.ValidationError{Field: fmt.Sprintf("strataBounds[%d]", i), Message: "must be greater than zero"})
			break
		}
	}
	return errs
}

// buildSampleItems denormalizes selected transactions into audit rows.
// StratumID groups items in blocks of 100 for worksheet exports.
func buildSampleItems(plan *Plan, sample []ledger.Transaction) []SampleItem {
	items := make([]SampleItem, len(sample))
	for i, tx := range sample {
		items[i] = SampleItem{
			TransactionID:   tx.ID,
			Amount:          tx.Amount,
			RiskScore:       tx.RiskScore,
			AccountNumber:   tx.AccountNumber,
			AccountName:     tx.AccountName,
			TransactionDate: tx.TransactionDate,
			Description:     tx.Description,
			IsHighRisk:      tx.RiskScore > HighRiskThreshold,
			StratumID:       i / 100,
			Method:          plan.Method,
		}
	}
	return items
}
