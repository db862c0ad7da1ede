package sampling

import (
	"math"
	"strings"

	"github.com/hmarstrand/ledgersample/internal/ledger"
)

// HighRiskThreshold marks a transaction for unconditional inclusion when
// the request asks for high-risk pre-inclusion.
const HighRiskThreshold = 0.8

const baseRiskScore = 0.1

// riskKeywords flags descriptions that historically correlate with audit
// findings. Matched case-insensitively as substrings.
var riskKeywords = []string{
	"vat",
	"value added tax",
	"loan",
	"interest",
	"depreciation",
	"write-down",
	"writedown",
}

// ScoreRisk assigns a heuristic risk score in [0, 1] from the transaction's
// amount, account classification, and description. This is best-effort
// triage, not a statistical model: it only decides which items may be
// force-included ahead of randomized selection.
func ScoreRisk(tx ledger.Transaction, materiality float64) float64 {
	score := baseRiskScore

	// Large relative to materiality
	if materiality > 0 && math.Abs(tx.Amount) > 0.5*materiality {
		score += 0.3
	}

	// Account class by leading digit: assets, liabilities, revenue, expenses
	if len(tx.AccountNumber) > 0 {
		switch tx.AccountNumber[0] {
		case '1':
			score += 0.1
		case '2':
			score += 0.2
		case '3':
			score += 0.25
		case '4', '5':
			score += 0.15
		}
	}

	desc := strings.ToLower(tx.Description)
	for _, kw := range riskKeywords {
		if strings.Contains(desc, kw) {
			score += 0.2
			break
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// scorePopulation sets RiskScore on every transaction in place and returns
// the same slice.
func scorePopulation(txns []ledger.Transaction, materiality float64) []ledger.Transaction {
	for i := range txns {
		txns[i].RiskScore = ScoreRisk(txns[i], materiality)
	}
	return txns
}
