/*package model loads the coefficient files that define the uncertainty
quadratic form. The format is line oriented: a free-form header line, the
radial basis token, the four integers n_species n_max l_max beta_size, the
cutoff function token, the cutoff radius, and then beta_size*n_species
whitespace-separated reals holding one packed upper triangle per species.

Loading is collective: the coordinator rank parses the file and broadcasts
the raw contents, then every rank validates and reconstructs the per-species
symmetric matrices identically. The packed format stores doubled
off-diagonal values, so they are halved when mirrored into the matrix.
*/
package model

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/atomvar/atomvar/basis"
	"github.com/atomvar/atomvar/comm"
)

// Model holds one loaded coefficient file. It is immutable after Load and
// may be shared read-only by every particle of the run.
type Model struct {
	RadialName, CutoffName string
	NSpecies, NMax, LMax   int
	BetaSize               int
	Cutoff                 float64

	// Radial and CutoffFunc are the resolved basis strategies.
	Radial     basis.Radial
	CutoffFunc basis.Cutoff

	// Matrices[s] is the n_descriptors x n_descriptors symmetric
	// coefficient matrix of 0-based species s.
	Matrices []*mat.SymDense

	beta []float64 // packed triangles, BetaSize*NSpecies values
}

// NRadial returns the number of radial channels.
func (m *Model) NRadial() int { return m.NMax * m.NSpecies }

// NDescriptors returns the invariant descriptor length implied by the
// header dimensions.
func (m *Model) NDescriptors() int {
	nr := m.NRadial()
	return nr * (nr + 1) / 2 * (m.LMax + 1)
}

// Read loads a coefficient file without any communication, for
// single-process use.
func Read(path string) (*Model, error) {
	m, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := m.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load is the collective form of Read: rank root parses the file, every
// rank receives the raw contents, and validation plus matrix
// reconstruction run identically everywhere. A parse failure on the
// coordinator is propagated so that all ranks return an error rather than
// stalling in the broadcast.
func Load(path string, r *comm.Rank, root int) (*Model, error) {
	var m *Model
	var parseErr error
	if r.Rank() == root {
		m, parseErr = parse(path)
	}

	status := 0
	if parseErr != nil {
		status = 1
	}
	if comm.BcastError(r, root, status) {
		if parseErr != nil {
			return nil, parseErr
		}
		return nil, fmt.Errorf("coordinator failed to read '%s'", path)
	}

	if r.Rank() != root {
		m = &Model{}
	}
	m.RadialName = r.BcastString(root, m.RadialName)
	m.CutoffName = r.BcastString(root, m.CutoffName)
	dims := r.BcastInts(root, []int{m.NSpecies, m.NMax, m.LMax, m.BetaSize})
	m.NSpecies, m.NMax, m.LMax, m.BetaSize =
		dims[0], dims[1], dims[2], dims[3]
	reals := append([]float64{m.Cutoff}, m.beta...)
	reals = r.BcastFloat64s(root, reals)
	m.Cutoff, m.beta = reals[0], reals[1:]

	if err := m.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// parse reads the raw file contents. Only the coordinator runs it.
func parse(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open coefficient file '%s': %w",
			path, err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) < 6 {
		return nil, fmt.Errorf(
			"coefficient file '%s' is truncated: %d lines", path, len(lines),
		)
	}

	m := &Model{}

	// Line 1 is a free-form header and is ignored.
	if m.RadialName, err = token(lines[1], "radial basis"); err != nil {
		return nil, err
	}

	dims := strings.Fields(lines[2])
	if len(dims) < 4 {
		return nil, fmt.Errorf(
			"expected 'n_species n_max l_max beta_size', got '%s'",
			strings.TrimSpace(lines[2]),
		)
	}
	ns := [4]int{}
	for i := range ns {
		if ns[i], err = strconv.Atoi(dims[i]); err != nil {
			return nil, fmt.Errorf("malformed dimension '%s'", dims[i])
		}
	}
	m.NSpecies, m.NMax, m.LMax, m.BetaSize = ns[0], ns[1], ns[2], ns[3]

	if m.CutoffName, err = token(lines[3], "cutoff function"); err != nil {
		return nil, err
	}
	rcTok, err := token(lines[4], "cutoff radius")
	if err != nil {
		return nil, err
	}
	if m.Cutoff, err = strconv.ParseFloat(rcTok, 64); err != nil {
		return nil, fmt.Errorf("malformed cutoff radius '%s'", rcTok)
	}

	// The remaining lines hold the packed coefficient blocks, several
	// values to a line.
	n := m.BetaSize * m.NSpecies
	if n < 0 {
		return nil, fmt.Errorf("negative coefficient count")
	}
	m.beta = make([]float64, 0, n)
	for _, line := range lines[5:] {
		for _, f := range strings.Fields(line) {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed coefficient '%s'", f)
			}
			m.beta = append(m.beta, v)
		}
	}
	if len(m.beta) < n {
		return nil, fmt.Errorf(
			"coefficient file '%s' holds %d values, need %d",
			path, len(m.beta), n,
		)
	}
	m.beta = m.beta[:n]

	return m, nil
}

func token(line, what string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("missing %s token", what)
	}
	return fields[0], nil
}

// finish validates the header and reconstructs the coefficient matrices.
// It runs identically on every rank so configuration errors surface
// collectively.
func (m *Model) finish() error {
	if m.NSpecies <= 0 || m.NMax <= 0 || m.LMax < 0 {
		return fmt.Errorf(
			"invalid basis dimensions n_species=%d n_max=%d l_max=%d",
			m.NSpecies, m.NMax, m.LMax,
		)
	}
	if m.Cutoff <= 0 {
		return fmt.Errorf("cutoff radius must be positive, got %g", m.Cutoff)
	}

	nd := m.NDescriptors()
	if packed := nd * (nd + 1) / 2; packed != m.BetaSize {
		return fmt.Errorf(
			"beta size %d doesn't match the %d descriptors (need %d)",
			m.BetaSize, nd, packed,
		)
	}

	var err error
	if m.Radial, err = basis.RadialByName(m.RadialName); err != nil {
		return err
	}
	if m.CutoffFunc, err = basis.CutoffByName(m.CutoffName); err != nil {
		return err
	}

	m.Matrices = make([]*mat.SymDense, m.NSpecies)
	count := 0
	for s := range m.Matrices {
		ms := mat.NewSymDense(nd, nil)
		for i := 0; i < nd; i++ {
			for j := i; j < nd; j++ {
				v := m.beta[count]
				if i != j {
					// The packed format doubles off-diagonal entries.
					v /= 2
				}
				ms.SetSym(i, j, v)
				count++
			}
		}
		m.Matrices[s] = ms
	}

	return nil
}
