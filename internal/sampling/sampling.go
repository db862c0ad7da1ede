// Package sampling implements the audit statistical sampling engine.
//
// Given a client's transaction population and audit parameters, it computes
// a statistically justified sample size (Poisson-based monetary unit
// sampling for substantive tests, Cochran's attribute formula for control
// tests) and selects a concrete sample using one of five algorithms. All
// selection is driven by a seeded generator so identical requests produce
// identical samples.
package sampling

import (
	"context"
	"errors"
	"time"

	"github.com/hmarstrand/ledgersample/internal/ledger"
	"github.com/hmarstrand/ledgersample/internal/pagination"
)

var (
	ErrInvalidDeviationRates  = errors.New("tolerable deviation rate must exceed expected deviation rate")
	ErrEmptyPopulation        = errors.New("population is empty for the requested fiscal year")
	ErrPopulationTooLarge     = errors.New("population exceeds the configured maximum")
	ErrPopulationFetch        = errors.New("population fetch failed")
	ErrPlanNotFound           = errors.New("sampling plan not found")
	ErrPersistenceUnavailable = errors.New("plan persistence is not configured")
)

// TestType selects the sizing mathematics.
type TestType string

const (
	TestSubstantive TestType = "substantive"
	TestControl     TestType = "control"
)

// Method selects the sample selection algorithm.
type Method string

const (
	MethodSimpleRandom Method = "srs"
	MethodSystematic   Method = "systematic"
	MethodMonetaryUnit Method = "mus"
	MethodStratified   Method = "stratified"
	MethodThreshold    Method = "threshold"
)

// DisplayName returns the human-readable name used in auto-generated plan names.
func (m Method) DisplayName() string {
	switch m {
	case MethodSimpleRandom:
		return "Simple random sample"
	case MethodSystematic:
		return "Systematic sample"
	case MethodMonetaryUnit:
		return "Monetary unit sample"
	case MethodStratified:
		return "Stratified sample"
	case MethodThreshold:
		return "Threshold sample"
	default:
		return "Sample"
	}
}

// RiskLevel scales the attribute sample size.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Multiplier returns the sample-size scaling factor for the risk level.
func (r RiskLevel) Multiplier() float64 {
	switch r {
	case RiskLow:
		return 0.8
	case RiskHigh:
		return 1.3
	default:
		return 1.0
	}
}

// Request is a single sampling request. Optional numeric fields use zero to
// mean absent; Seed is a pointer so that "no seed" can default to the clock.
type Request struct {
	// ClientID and FiscalYear are validated per operation: plan generation
	// requires both, sizing previews need neither.
	ClientID   string   `json:"clientId"`
	FiscalYear int      `json:"fiscalYear"`
	TestType   TestType `json:"testType"`
	Method     Method   `json:"method"`

	// Caller-supplied aggregates, used only for sizing previews and cache
	// keying; plan generation derives both from the fetched population.
	PopulationSize int     `json:"populationSize,omitempty"`
	PopulationSum  float64 `json:"populationSum,omitempty"`

	Materiality          float64 `json:"materiality,omitempty"`
	ExpectedMisstatement float64 `json:"expectedMisstatement,omitempty"`
	ConfidenceLevel      float64 `json:"confidenceLevel,omitempty"` // percentage, defaults to 95

	RiskLevel              RiskLevel `json:"riskLevel,omitempty"`
	TolerableDeviationRate float64   `json:"tolerableDeviationRate,omitempty"` // percentage
	ExpectedDeviationRate  float64   `json:"expectedDeviationRate,omitempty"`  // percentage

	StrataBounds    []float64 `json:"strataBounds,omitempty"` // ascending amount breakpoints
	ThresholdAmount float64   `json:"thresholdAmount,omitempty"`

	Seed                 *int64 `json:"seed,omitempty"`
	UseHighRiskInclusion bool   `json:"useHighRiskInclusion,omitempty"`

	Save     bool   `json:"save,omitempty"`
	PlanName string `json:"planName,omitempty"`

	SelectedStandardNumbers []string `json:"selectedStandardNumbers,omitempty"`
	ExcludedAccountNumbers  []string `json:"excludedAccountNumbers,omitempty"`
}

// Plan is the immutable audit record of one sampling run.
type Plan struct {
	ID         string   `json:"id"`
	ClientID   string   `json:"clientId"`
	FiscalYear int      `json:"fiscalYear"`
	TestType   TestType `json:"testType"`
	Method     Method   `json:"method"`

	PopulationSize        int     `json:"populationSize"`
	PopulationSum         float64 `json:"populationSum"`
	RecommendedSampleSize int     `json:"recommendedSampleSize"`
	ActualSampleSize      int     `json:"actualSampleSize"`
	CoveragePercentage    float64 `json:"coveragePercentage"`

	Notes       string       `json:"notes"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Metadata    PlanMetadata `json:"metadata"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// PlanMetadata records every parameter that influenced the numeric output,
// so a persisted plan can be replayed exactly.
type PlanMetadata struct {
	Seed                    int64     `json:"seed"`
	ConfidenceLevel         float64   `json:"confidenceLevel"`
	RiskLevel               RiskLevel `json:"riskLevel"`
	Materiality             float64   `json:"materiality,omitempty"`
	ExpectedMisstatement    float64   `json:"expectedMisstatement,omitempty"`
	TolerableDeviationRate  float64   `json:"tolerableDeviationRate,omitempty"`
	ExpectedDeviationRate   float64   `json:"expectedDeviationRate,omitempty"`
	StrataBounds            []float64 `json:"strataBounds,omitempty"`
	ThresholdAmount         float64   `json:"thresholdAmount,omitempty"`
	HighRiskInclusion       bool      `json:"highRiskInclusion"`
	HighRiskIncluded        int       `json:"highRiskIncluded"`
	SelectedStandardNumbers []string  `json:"selectedStandardNumbers,omitempty"`
	ExcludedAccountNumbers  []string  `json:"excludedAccountNumbers,omitempty"`
}

// SampleItem is one persisted sample row, denormalized for the audit trail.
type SampleItem struct {
	TransactionID   string    `json:"transactionId"`
	Amount          float64   `json:"amount"`
	RiskScore       float64   `json:"riskScore"`
	AccountNumber   string    `json:"accountNumber"`
	AccountName     string    `json:"accountName"`
	TransactionDate time.Time `json:"transactionDate"`
	Description     string    `json:"description"`
	IsHighRisk      bool      `json:"isHighRisk"`
	StratumID       int       `json:"stratumId"`
	Method          Method    `json:"method"`
}

// Result is the response of one sampling run.
type Result struct {
	Plan   *Plan                `json:"plan"`
	Sample []ledger.Transaction `json:"sample"`
}

// AuditEntry describes one engine action for the audit log.
type AuditEntry struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists sampling plans and their sample items.
type Store interface {
	// SavePlan writes the plan row and all sample item rows atomically:
	// either everything is stored or nothing is.
	SavePlan(ctx context.Context, plan *Plan, items []SampleItem) error
	GetPlan(ctx context.Context, id string) (*Plan, []SampleItem, error)
	ListPlans(ctx context.Context, clientID string, limit int, cursor *pagination.Cursor) ([]*Plan, error)
	// WriteAuditLog records an engine action. Callers treat failures as
	// non-fatal.
	WriteAuditLog(ctx context.Context, entry *AuditEntry) error
}
