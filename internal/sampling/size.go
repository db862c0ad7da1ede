package sampling

import (
	"math"
)

// minSampleSize is the statistical floor: samples below 30 items are not
// considered valid for inference, unless the population itself is smaller.
const minSampleSize = 30

// heuristicCeiling caps the fallback heuristic when no statistical
// parameters are available.
const heuristicCeiling = 100

// RecommendedSize computes the recommended sample size for the request
// against a population of popSize transactions whose absolute amounts sum
// to popSum. Substantive tests use Poisson-based monetary unit sampling,
// control tests use Cochran's attribute formula with finite-population
// correction.
func RecommendedSize(req *Request, popSize int, popSum float64) (int, error) {
	if popSize <= 0 {
		return 0, ErrEmptyPopulation
	}

	switch req.TestType {
	case TestControl:
		return attributeSize(req, popSize)
	default:
		return musSize(req, popSize, popSum), nil
	}
}

// musSize implements the Poisson approximation to the binomial
// misstatement-detection model:
//
//	n = ceil((populationSum / materiality) * (-ln(1 - CL) + EM/materiality))
//
// Falls back to a 5%-of-population heuristic when materiality or expected
// misstatement is absent.
func musSize(req *Request, popSize int, popSum float64) int {
	if req.Materiality <= 0 || req.ExpectedMisstatement <= 0 {
		return heuristicSize(popSize)
	}

	confidence := confidenceOrDefault(req.ConfidenceLevel)
	poissonFactor := -math.Log(1 - confidence/100)
	expectedErrorFactor := req.ExpectedMisstatement / req.Materiality

	n := math.Ceil((popSum / req.Materiality) * (poissonFactor + expectedErrorFactor))
	return clampSize(int(n), popSize)
}

// attributeSize implements Cochran's formula with finite-population
// correction, scaled by the assessed risk level. Returns
// ErrInvalidDeviationRates when the formula would diverge.
func attributeSize(req *Request, popSize int) (int, error) {
	if req.TolerableDeviationRate <= 0 || req.ExpectedDeviationRate <= 0 {
		return heuristicSize(popSize), nil
	}
	if req.TolerableDeviationRate <= req.ExpectedDeviationRate {
		return 0, ErrInvalidDeviationRates
	}

	z := zScoreForConfidence(confidenceOrDefault(req.ConfidenceLevel))
	p := req.ExpectedDeviationRate / 100
	q := 1 - p
	e := (req.TolerableDeviationRate - req.ExpectedDeviationRate) / 100

	n0 := z * z * p * q / (e * e)
	n := n0 / (1 + (n0-1)/float64(popSize))

	scaled := math.Ceil(n * req.RiskLevel.Multiplier())
	return clampSize(int(scaled), popSize), nil
}

// heuristicSize is the no-parameters fallback: 5% of the population,
// floored at 30 and capped at 100, never exceeding the population itself.
func heuristicSize(popSize int) int {
	n := int(math.Ceil(float64(popSize) * 0.05))
	if n < minSampleSize {
		n = minSampleSize
	}
	if n > heuristicCeiling {
		n = heuristicCeiling
	}
	if n > popSize {
		n = popSize
	}
	return n
}

// clampSize enforces the statistical floor and the population ceiling.
func clampSize(n, popSize int) int {
	if n < minSampleSize {
		n = minSampleSize
	}
	if n > popSize {
		n = popSize
	}
	return n
}

// zScoreForConfidence maps common confidence levels to two-tailed z-scores.
// Unrecognized levels default to 95% (1.96).
func zScoreForConfidence(confidence float64) float64 {
	switch confidence {
	case 99:
		return 2.58
	case 95:
		return 1.96
	case 90:
		return 1.65
	default:
		return 1.96
	}
}

func confidenceOrDefault(confidence float64) float64 {
	if confidence <= 0 {
		return 95
	}
	return confidence
}
