package sampling

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// PlanCache holds recently generated plans so that identical requests
// within the TTL return the same plan without refetching the population.
type PlanCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	result  *Result
	expires time.Time
}

const DefaultCacheTTL = 5 * time.Minute

func NewPlanCache(ttl time.Duration) *PlanCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PlanCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *PlanCache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

func (c *PlanCache) Set(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// Sweep expired entries while we hold the lock; the map stays small
	// at typical request rates.
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{result: result, expires: now.Add(c.ttl)}
}

func (c *PlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheKey derives a stable key from every field that changes the sampling
// outcome. Two requests that differ in any parameter, including an explicit
// seed, must never share a cached plan.
func CacheKey(req *Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s|%d|%s|%s|", req.ClientID, req.FiscalYear, req.TestType, req.Method)
	fmt.Fprintf(&b, "%d|%.4f|%.4f|%.4f|%.4f|", req.PopulationSize, req.PopulationSum, req.Materiality, req.ExpectedMisstatement, req.ConfidenceLevel)
	fmt.Fprintf(&b, "%s|%.4f|%.4f|", req.RiskLevel, req.TolerableDeviationRate, req.ExpectedDeviationRate)

	bounds := append([]float64(nil), req.StrataBounds...)
	sort.Float64s(bounds)
	for _, bound := range bounds {
		fmt.Fprintf(&b, "%.4f,", bound)
	}
	fmt.Fprintf(&b, "|%.4f|", req.ThresholdAmount)

	if req.Seed != nil {
		fmt.Fprintf(&b, "seed=%d|", *req.Seed)
	} else {
		b.WriteString("seed=auto|")
	}
	fmt.Fprintf(&b, "%t|", req.UseHighRiskInclusion)

	standards := append([]string(nil), req.SelectedStandardNumbers...)
	sort.Strings(standards)
	b.WriteString(strings.Join(standards, ","))
	b.WriteString("|")

	excluded := append([]string(nil), req.ExcludedAccountNumbers...)
	sort.Strings(excluded)
	b.WriteString(strings.Join(excluded, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:24]
}
