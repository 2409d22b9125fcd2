/*package atomvar estimates per-particle uncertainties of a machine-learned
interatomic model inside a spatially decomposed simulation. The root package
holds the types shared between the host engine and the estimator; the math
lives in the subpackages.
*/
package atomvar

// System is the per-step view of one rank's particles, owned by the host
// engine and read-only to the estimator. Particles 0..NLocal-1 are owned,
// NLocal..NLocal+NGhost-1 are boundary copies of particles owned elsewhere.
type System struct {
	// X holds positions for owned particles followed by ghosts.
	X [][3]float64
	// Type holds 1-based species tags for owned particles and ghosts.
	Type []int
	// Neigh holds the broad-cutoff neighbor candidate list for each owned
	// particle, in the host's order. The estimator re-filters it against
	// the model cutoff.
	Neigh [][]int

	NLocal, NGhost int

	// NewtonPair reports whether the host applies pairwise forces with
	// action-reaction. The estimator's accumulation assumes it and refuses
	// to run without it.
	NewtonPair bool
}

// NAll returns the extended particle count, owned plus ghosts.
func (s *System) NAll() int { return s.NLocal + s.NGhost }

// PerParticle is the narrow contract a host engine drives each step. The
// host supplies the transport for the boundary reduction; Pack and Unpack
// supply its payload.
type PerParticle interface {
	// Configure consumes the host's coefficient arguments. Only the
	// all-species wildcard pair selector "* *" followed by a file path is
	// accepted.
	Configure(args []string) error

	// ComputePerParticle refreshes the scores for every locally present
	// particle from the given step inputs.
	ComputePerParticle(sys *System) error

	// Scores returns the per-particle 3-component scores computed by the
	// last ComputePerParticle call. Boundary particles hold partial values
	// until the halo reduction has run.
	Scores() [][3]float64

	// PackBoundary serializes the scores of n particles starting at local
	// index first into buf and returns the number of values written.
	PackBoundary(first, n int, buf []float64) int

	// UnpackBoundary adds packed score values into the targeted particles.
	// Running it for every incoming partial buffer completes the halo
	// reduction.
	UnpackBoundary(targets []int, buf []float64)
}
