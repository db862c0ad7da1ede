package sampling

import (
	"fmt"
	"math"
	"sort"

	"github.com/hmarstrand/ledgersample/internal/ledger"
)

// Selector is one sample selection algorithm. Implementations must be
// deterministic: the same population, target size, and rng state always
// yield the same sample, with no duplicate transaction ids and never more
// than targetSize items.
type Selector interface {
	Method() Method
	Select(population []ledger.Transaction, targetSize int, rng *RNG) []ledger.Transaction
}

// selectorFor builds the selector for the request's method. The five
// methods form a closed set; adding a sixth means adding one type here.
func selectorFor(req *Request) (Selector, error) {
	switch req.Method {
	case MethodSimpleRandom, "":
		return simpleRandomSelector{}, nil
	case MethodSystematic:
		return systematicSelector{}, nil
	case MethodMonetaryUnit:
		return monetaryUnitSelector{}, nil
	case MethodStratified:
		bounds := append([]float64(nil), req.StrataBounds...)
		sort.Float64s(bounds)
		return stratifiedSelector{bounds: bounds}, nil
	case MethodThreshold:
		return thresholdSelector{amount: req.ThresholdAmount}, nil
	default:
		return nil, fmt.Errorf("unknown sampling method %q", req.Method)
	}
}

// fisherYates shuffles a copy of the population using the seeded rng.
// The original comparator-based shuffle this replaces was not uniform;
// Fisher-Yates keeps determinism for a given seed without the bias.
func fisherYates(population []ledger.Transaction, rng *RNG) []ledger.Transaction {
	shuffled := make([]ledger.Transaction, len(population))
	copy(shuffled, population)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

func truncate(sample []ledger.Transaction, targetSize int) []ledger.Transaction {
	if len(sample) > targetSize {
		return sample[:targetSize]
	}
	return sample
}

// --- Simple random ---

type simpleRandomSelector struct{}

func (simpleRandomSelector) Method() Method { return MethodSimpleRandom }

func (simpleRandomSelector) Select(population []ledger.Transaction, targetSize int, rng *RNG) []ledger.Transaction {
	return truncate(fisherYates(population, rng), targetSize)
}

// --- Systematic ---

type systematicSelector struct{}

func (systematicSelector) Method() Method { return MethodSystematic }

func (systematicSelector) Select(population []ledger.Transaction, targetSize int, rng *RNG) []ledger.Transaction {
	n := len(population)
	if targetSize >= n {
		out := make([]ledger.Transaction, n)
		copy(out, population)
		return out
	}

	interval := n / targetSize
	start := int(rng.Next() * float64(interval))

	sample := make([]ledger.Transaction, 0, targetSize)
	for i := 0; i < targetSize; i++ {
		sample = append(sample, population[(start+i*interval)%n])
	}
	return sample
}

// --- Monetary unit ---

type monetaryUnitSelector struct{}

func (monetaryUnitSelector) Method() Method { return MethodMonetaryUnit }

// Select picks transactions with probability proportional to absolute
// amount: the population is laid out as a line of monetary units, split
// into targetSize equal intervals, and one unit is drawn per interval.
// Large transactions span many units and may be hit more than once;
// duplicates collapse, so the result can be smaller than targetSize.
func (monetaryUnitSelector) Select(population []ledger.Transaction, targetSize int, rng *RNG) []ledger.Transaction {
	cumulative := make([]float64, len(population))
	total := 0.0
	for i, tx := range population {
		total += math.Abs(tx.Amount)
		cumulative[i] = total
	}

	// A population of zero-amount lines has no monetary units to sample;
	// fall back to an unweighted draw.
	if total == 0 {
		return simpleRandomSelector{}.Select(population, targetSize, rng)
	}

	interval := total / float64(targetSize)
	seen := make(map[string]bool, targetSize)
	sample := make([]ledger.Transaction, 0, targetSize)

	for i := 0; i < targetSize; i++ {
		point := rng.Next()*interval + float64(i)*interval
		idx := sort.SearchFloat64s(cumulative, point)
		if idx >= len(population) {
			idx = len(population) - 1
		}
		tx := population[idx]
		if !seen[tx.ID] {
			seen[tx.ID] = true
			sample = append(sample, tx)
		}
	}
	return truncate(sample, targetSize)
}

// --- Stratified ---

type stratifiedSelector struct {
	bounds []float64 // ascending; implicit lower bound 0 and upper bound +inf
}

func (stratifiedSelector) Method() Method { return MethodStratified }

func (s stratifiedSelector) Select(population []ledger.Transaction, targetSize int, rng *RNG) []ledger.Transaction {
	strata := make([][]ledger.Transaction, len(s.bounds)+1)
	for _, tx := range population {
		idx := s.stratumIndex(math.Abs(tx.Amount))
		strata[idx] = append(strata[idx], tx)
	}

	total := float64(len(population))
	sample := make([]ledger.Transaction, 0, targetSize)
	for _, stratum := range strata {
		if len(stratum) == 0 {
			continue
		}
		// Proportional allocation, at least one item per non-empty stratum
		allocation := int(math.Round(float64(len(stratum)) / total * float64(targetSize)))
		if allocation < 1 {
			allocation = 1
		}
		sample = append(sample, simpleRandomSelector{}.Select(stratum, allocation, rng)...)
	}
	return truncate(sample, targetSize)
}

func (s stratifiedSelector) stratumIndex(amount float64) int {
	for i, bound := range s.bounds {
		if amount < bound {
			return i
		}
	}
	return len(s.bounds)
}

// --- Threshold ---

type thresholdSelector struct {
	amount float64
}

func (thresholdSelector) Method() Method { return MethodThreshold }

// Select tests every transaction at or above the threshold amount (100%
// testing of material items), then fills the remaining budget with a
// simple random draw over the sub-threshold population.
func (s thresholdSelector) Select(population []ledger.Transaction, targetSize int, rng *RNG) []ledger.Transaction {
	var above, below []ledger.Transaction
	for _, tx := range population {
		if math.Abs(tx.Amount) >= s.amount {
			above = append(above, tx)
		} else {
			below = append(below, tx)
		}
	}

	if len(above) >= targetSize {
		return truncate(above, targetSize)
	}

	remaining := targetSize - len(above)
	return append(above, simpleRandomSelector{}.Select(below, remaining, rng)...)
}
