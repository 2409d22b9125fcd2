/*package variance estimates the distance between each particle's local
environment and the training distribution of a machine-learned interatomic
model. The score of particle i is the per-axis quadratic form

	score[i][a] = sum_pq D[i,a,p] C_s[p,q] D[i,a,q]

where D is the accumulated derivative of the invariant descriptors with
respect to the particle's coordinate and C_s the coefficient matrix of its
species. The form is not positive definite in general; negative scores are
valid outputs of the loaded model, not errors.

An Estimator owns a grow-only workspace reused across steps. Boundary
particles accumulate partial rows and scores on every rank that holds them;
the host's reverse communication completes the sum on the owner via
PackBoundary and UnpackBoundary.
*/
package variance

import (
	"fmt"

	"github.com/viterin/vek"

	"github.com/atomvar/atomvar"
	"github.com/atomvar/atomvar/comm"
	"github.com/atomvar/atomvar/descriptor"
	"github.com/atomvar/atomvar/model"
)

// Estimator implements the host engine's per-particle contract.
type Estimator struct {
	m    *model.Model
	calc *descriptor.Calc
	path string

	// Step workspace, indexed by local particle. Capacity only grows.
	nmax   int
	nall   int
	scores [][3]float64
	dervs  []float64 // (3*nmax) x nd block, row (3i+comp)*nd

	// Per-center scratch, sized for the largest neighbor count seen.
	inner   []int
	sbDervs []float64
	b2Dervs []float64
	envDot  []float64
	sbVals  []float64
	b2Vals  []float64
}

var _ atomvar.PerParticle = (*Estimator)(nil)

func New() *Estimator { return &Estimator{} }

// Configure consumes the host's coefficient arguments. Per-pair coefficient
// subsets are not supported: the selector must be the all-species wildcard
// pair "* *" followed by the coefficient file path.
func (e *Estimator) Configure(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf(
			"expected '* * <coefficient file>', got %d arguments", len(args),
		)
	}
	if args[0] != "*" || args[1] != "*" {
		return fmt.Errorf(
			"only the all-species pair selector '* *' is supported, "+
				"got '%s %s'", args[0], args[1],
		)
	}
	e.path = args[2]
	return nil
}

// Load collectively reads the configured coefficient file through the given
// rank (nil means a single-process group) and prepares the descriptor
// calculator. It must complete on every rank before the first step.
func (e *Estimator) Load(r *comm.Rank) error {
	if e.path == "" {
		return fmt.Errorf("no coefficient file configured")
	}
	if r == nil {
		r = comm.Self()
	}

	m, err := model.Load(e.path, r, 0)
	if err != nil {
		return err
	}
	e.m = m
	e.calc = descriptor.NewCalc(m.Radial, m.CutoffFunc,
		m.NSpecies, m.NMax, m.LMax, m.Cutoff)
	e.sbVals = make([]float64, e.calc.SingleBondLen())
	e.b2Vals = make([]float64, e.calc.NDescriptors())
	return nil
}

// Scores returns the 3-component score of every locally present particle
// from the last step. Boundary entries hold partial values until the halo
// reduction has run.
func (e *Estimator) Scores() [][3]float64 { return e.scores[:e.nall] }

// ComputePerParticle refreshes every locally present particle's score from
// this step's positions and neighbor candidates.
func (e *Estimator) ComputePerParticle(sys *atomvar.System) error {
	if e.m == nil {
		return fmt.Errorf("coefficients not loaded")
	}
	if !sys.NewtonPair {
		return fmt.Errorf(
			"per-particle uncertainty requires pairwise action-reaction " +
				"(newton) forces in the host",
		)
	}

	nall := sys.NAll()
	for i := 0; i < nall; i++ {
		if s := sys.Type[i]; s < 1 || s > e.m.NSpecies {
			return fmt.Errorf(
				"particle %d has species tag %d outside 1..%d",
				i, s, e.m.NSpecies,
			)
		}
	}

	nd := e.m.NDescriptors()
	e.grow(nall, nd)
	e.nall = nall

	// The workspace must not leak rows across steps.
	for i := 0; i < nall; i++ {
		e.scores[i] = [3]float64{}
	}
	clearRows := e.dervs[:3*nall*nd]
	for i := range clearRows {
		clearRows[i] = 0
	}

	rc2 := e.m.Cutoff * e.m.Cutoff
	for i := 0; i < sys.NLocal; i++ {
		center := sys.X[i]

		// Filter once: the builder's rows and the accumulator's scatter
		// below share this list, so their orders agree by construction.
		e.inner = filterNeighbors(e.inner[:0], sys.X, sys.Neigh[i],
			center, rc2)
		nInner := len(e.inner)
		if nInner == 0 {
			continue
		}
		e.growScratch(nInner, nd)

		e.calc.SingleBond(center, sys.X, sys.Type, e.inner,
			e.sbVals, e.sbDervs)
		e.calc.PowerSpectrum(e.sbVals, e.sbDervs, nInner,
			e.b2Vals, e.b2Dervs, e.envDot)

		// Scatter with action-reaction: the row added to the center is
		// subtracted, bit for bit, from the neighbor. Ghost neighbors
		// accumulate here and are reconciled by the halo reduction.
		for k, j := range e.inner {
			for comp := 0; comp < 3; comp++ {
				src := e.b2Dervs[(3*k+comp)*nd : (3*k+comp+1)*nd]
				vek.Add_Inplace(e.row(i, comp, nd), src)
				vek.Sub_Inplace(e.row(j, comp, nd), src)
			}
		}
	}

	// Quadratic form over the accumulated rows, for ghosts as well: their
	// partial scores are what the reverse communication sums on the owner.
	for i := 0; i < nall; i++ {
		c := e.m.Matrices[sys.Type[i]-1]
		for comp := 0; comp < 3; comp++ {
			row := e.row(i, comp, nd)
			s := 0.0
			for p := 0; p < nd; p++ {
				dp := row[p]
				s += dp * c.At(p, p) * dp
				for q := p + 1; q < nd; q++ {
					s += 2 * dp * c.At(p, q) * row[q]
				}
			}
			e.scores[i][comp] = s
		}
	}

	return nil
}

// PackBoundary serializes the scores of n particles starting at local index
// first into buf and returns the number of values written.
func (e *Estimator) PackBoundary(first, n int, buf []float64) int {
	m := 0
	for i := first; i < first+n; i++ {
		buf[m] = e.scores[i][0]
		buf[m+1] = e.scores[i][1]
		buf[m+2] = e.scores[i][2]
		m += 3
	}
	return m
}

// UnpackBoundary adds an incoming partial-score buffer into the targeted
// particles. It must run after ComputePerParticle: what is summed is the
// post-quadratic-form score, never raw derivative rows.
func (e *Estimator) UnpackBoundary(targets []int, buf []float64) {
	comm.ReduceInto(e.scores, targets, buf)
}

func (e *Estimator) row(i, comp, nd int) []float64 {
	off := (3*i + comp) * nd
	return e.dervs[off : off+nd]
}

// grow widens the workspace to hold n particles, keeping existing rows at
// their indices. Capacity never shrinks; new regions start zeroed.
func (e *Estimator) grow(n, nd int) {
	if n <= e.nmax {
		return
	}
	scores := make([][3]float64, n)
	copy(scores, e.scores)
	e.scores = scores

	dervs := make([]float64, 3*n*nd)
	copy(dervs, e.dervs)
	e.dervs = dervs

	e.nmax = n
}

func (e *Estimator) growScratch(nInner, nd int) {
	if need := 3 * nInner * e.calc.SingleBondLen(); len(e.sbDervs) < need {
		e.sbDervs = make([]float64, need)
	}
	if need := 3 * nInner * nd; len(e.b2Dervs) < need {
		e.b2Dervs = make([]float64, need)
	}
	if need := 3 * nInner; len(e.envDot) < need {
		e.envDot = make([]float64, need)
	}
}

// filterNeighbors appends to dst the candidates strictly inside the cutoff,
// in candidate-list order. Every consumer of the filtered list shares one
// call's result, so the membership decision is made exactly once per
// particle per step.
func filterNeighbors(dst []int, x [][3]float64, candidates []int,
	center [3]float64, rc2 float64) []int {

	for _, j := range candidates {
		delx := x[j][0] - center[0]
		dely := x[j][1] - center[1]
		delz := x[j][2] - center[2]
		if delx*delx+dely*dely+delz*delz < rc2 {
			dst = append(dst, j)
		}
	}
	return dst
}
