package domain

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atomvar/atomvar/comm"
	"github.com/atomvar/atomvar/variance"
)

func lattice(nx, ny, nz int, a float64) ([][3]float64, []int) {
	x := [][3]float64{}
	types := []int{}
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				// Small deterministic jitter so environments differ.
				d := 0.05 * math.Sin(float64(7*i+3*j+k))
				x = append(x, [3]float64{
					float64(i)*a + d, float64(j) * a, float64(k)*a - d,
				})
				types = append(types, 1)
			}
		}
	}
	return x, types
}

func TestDecomposeOwnership(t *testing.T) {
	x, types := lattice(6, 2, 2, 1.5)
	locals := Decompose(x, types, 3, 2.0)

	seen := make([]int, len(x))
	for r, l := range locals {
		require.Equal(t, l.Sys.NAll(), len(l.Global), "rank %d", r)
		for k, g := range l.Global {
			if l.Sys.X[k] != x[g] || l.Sys.Type[k] != types[g] {
				t.Errorf("rank %d local %d does not mirror global %d",
					r, k, g)
			}
			if k < l.Sys.NLocal {
				seen[g]++
			}
		}
	}
	for g, n := range seen {
		if n != 1 {
			t.Errorf("particle %d owned %d times", g, n)
		}
	}
}

func TestPlanSymmetry(t *testing.T) {
	x, types := lattice(6, 2, 2, 1.5)
	locals := Decompose(x, types, 3, 2.0)

	for r, l := range locals {
		for _, b := range l.Plan.Send {
			// Find the matching receive entry on the owner.
			var match *Targets
			for i := range locals[b.To].Plan.Recv {
				if locals[b.To].Plan.Recv[i].From == r {
					match = &locals[b.To].Plan.Recv[i]
					break
				}
			}
			require.NotNil(t, match, "rank %d -> %d has no receive", r, b.To)
			require.Equal(t, b.N, len(match.Local),
				"rank %d -> %d block size", r, b.To)

			// Packing order must line up: the sender's k-th ghost is the
			// owner's k-th target.
			for k := 0; k < b.N; k++ {
				sg := l.Global[b.First+k]
				og := locals[b.To].Global[match.Local[k]]
				if sg != og {
					t.Errorf("rank %d -> %d slot %d: global %d vs %d",
						r, b.To, k, sg, og)
				}
				if match.Local[k] >= locals[b.To].Sys.NLocal {
					t.Errorf("rank %d -> %d slot %d targets a ghost",
						r, b.To, k)
				}
			}
		}
	}
}

func TestDecomposeSingleRank(t *testing.T) {
	x, types := lattice(4, 2, 2, 1.5)
	locals := Decompose(x, types, 1, 2.0)

	require.Len(t, locals, 1)
	l := locals[0]
	if l.Sys.NGhost != 0 || len(l.Plan.Send) != 0 || len(l.Plan.Recv) != 0 {
		t.Errorf("single-rank decomposition has halo state")
	}
	if l.Sys.NLocal != len(x) {
		t.Errorf("NLocal = %d, want %d", l.Sys.NLocal, len(x))
	}
}

func betaFile(t *testing.T, nSpecies, nMax, lMax int, rc float64) string {
	t.Helper()

	nr := nSpecies * nMax
	nd := nr * (nr + 1) / 2 * (lMax + 1)
	betaSize := nd * (nd + 1) / 2

	b := strings.Builder{}
	fmt.Fprintf(&b, "synthetic uncertainty coefficients\nchebyshev\n")
	fmt.Fprintf(&b, "%d %d %d %d\nquadratic\n%g\n", nSpecies, nMax, lMax,
		betaSize, rc)
	for k := 0; k < betaSize*nSpecies; k++ {
		v := math.Sin(float64(k + 1))
		b.WriteString(strconv.FormatFloat(v, 'g', 17, 64))
		b.WriteByte('\n')
	}

	path := filepath.Join(t.TempDir(), "beta.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func runPipeline(t *testing.T, path string, locals []*Local) []*variance.Estimator {
	t.Helper()

	ranks := comm.NewGroup(len(locals))
	ests := make([]*variance.Estimator, len(locals))
	errs := make([]error, len(locals))

	wg := sync.WaitGroup{}
	for i, r := range ranks {
		wg.Add(1)
		go func(i int, r *comm.Rank) {
			defer wg.Done()
			e := variance.New()
			ests[i] = e
			if errs[i] = e.Configure([]string{"*", "*", path}); errs[i] != nil {
				return
			}
			if errs[i] = e.Load(r); errs[i] != nil {
				return
			}
			if errs[i] = e.ComputePerParticle(locals[i].Sys); errs[i] != nil {
				return
			}
			locals[i].ReverseSum(r, e)
		}(i, r)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "rank %d", i)
	}
	return ests
}

func TestPipelineMatchesSingleRank(t *testing.T) {
	rc := 2.2
	path := betaFile(t, 1, 2, 1, rc)
	x, types := lattice(6, 3, 3, 1.4)

	// Reference: the whole box on one rank.
	ref := Decompose(x, types, 1, rc)
	refEst := runPipeline(t, path, ref)[0]
	refScores := make([][3]float64, len(x))
	for k, g := range ref[0].Global {
		refScores[g] = refEst.Scores()[k]
	}

	// Decomposed run. Particles that exist as a ghost anywhere straddle a
	// slab boundary; their reduced score is a sum of partial quadratic
	// forms and differs from the single-rank value by design. Interior
	// particles must agree.
	locals := Decompose(x, types, 3, rc)
	ests := runPipeline(t, path, locals)

	isBoundary := make([]bool, len(x))
	for _, l := range locals {
		for _, g := range l.Global[l.Sys.NLocal:] {
			isBoundary[g] = true
		}
	}

	interior := 0
	for r, l := range locals {
		scores := ests[r].Scores()
		for k := 0; k < l.Sys.NLocal; k++ {
			g := l.Global[k]
			if isBoundary[g] {
				continue
			}
			interior++
			for c := 0; c < 3; c++ {
				want := refScores[g][c]
				got := scores[k][c]
				if math.Abs(got-want) > 1e-9*(1+math.Abs(want)) {
					t.Errorf("particle %d comp %d: %g, single-rank %g",
						g, c, got, want)
				}
			}
		}
	}
	if interior == 0 {
		t.Fatalf("no interior particles; decomposition too fine for test")
	}
}

func TestPipelineDeterminism(t *testing.T) {
	rc := 2.2
	path := betaFile(t, 1, 1, 1, rc)
	x, types := lattice(5, 2, 2, 1.4)

	run := func() [][3]float64 {
		locals := Decompose(x, types, 2, rc)
		ests := runPipeline(t, path, locals)
		out := make([][3]float64, len(x))
		for r, l := range locals {
			for k := 0; k < l.Sys.NLocal; k++ {
				out[l.Global[k]] = ests[r].Scores()[k]
			}
		}
		return out
	}

	a, b := run(), run()
	for g := range a {
		if a[g] != b[g] {
			t.Errorf("particle %d: %v != %v across runs", g, a[g], b[g])
		}
	}
}
