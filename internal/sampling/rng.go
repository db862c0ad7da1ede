package sampling

// lcg constants. These are a compatibility contract: plans persisted by
// earlier versions of the system replay byte-identically only if the
// generator stays exactly (x*9301 + 49297) mod 233280. The generator is
// not cryptographically meaningful, only internally consistent.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// RNG is a deterministic pseudo-random source. Two instances created with
// the same seed produce identical sequences. Not safe for concurrent use;
// each sampling run owns its own instance.
type RNG struct {
	state int64
}

// NewRNG creates a generator from an integer seed. Negative seeds are
// folded into the modulus range so the sequence is defined for any input.
func NewRNG(seed int64) *RNG {
	state := seed % lcgModulus
	if state < 0 {
		state += lcgModulus
	}
	return &RNG{state: state}
}

// Next returns the next value in [0, 1).
func (r *RNG) Next() float64 {
	r.state = (r.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(r.state) / lcgModulus
}

// Intn returns a value in [0, n). Panics if n <= 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		panic("sampling: Intn called with non-positive n")
	}
	return int(r.Next() * float64(n))
}
