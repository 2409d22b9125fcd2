/*package config reads the gcfg run files consumed by the atomvar command.
*/
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

// Run describes one driver invocation: the coefficient model to load and
// the synthetic box to evaluate it on.
type Run struct {
	// Required
	Coefficients string
	Cells        int

	// Optional
	Ranks           int
	LatticeConstant float64
	Jitter          float64
	Seed            int
	Output          string
}

type wrapper struct {
	Run Run
}

// Default returns the optional-field defaults of a [run] section.
func Default() Run {
	return Run{
		Ranks:           1,
		LatticeConstant: 2.0,
		Seed:            1,
	}
}

// CheckInit validates a parsed section and fills defaulted fields.
func (run *Run) CheckInit() error {
	if run.Coefficients == "" {
		return fmt.Errorf("need to specify a 'Coefficients' file.")
	}
	if run.Cells <= 0 {
		return fmt.Errorf(
			"need a positive 'Cells' count, but got %d.", run.Cells,
		)
	}
	if run.Ranks <= 0 {
		return fmt.Errorf("'Ranks' must be positive, but is %d.", run.Ranks)
	}
	if run.LatticeConstant <= 0 {
		return fmt.Errorf(
			"'LatticeConstant' must be positive, but is %g.",
			run.LatticeConstant,
		)
	}
	if run.Jitter < 0 {
		return fmt.Errorf("'Jitter' must not be negative, but is %g.",
			run.Jitter)
	}
	return nil
}

// Read parses and validates a run config file.
func Read(path string) (*Run, error) {
	wrap := &wrapper{Default()}
	if err := gcfg.ReadFileInto(wrap, path); err != nil {
		return nil, err
	}
	if err := wrap.Run.CheckInit(); err != nil {
		return nil, err
	}
	return &wrap.Run, nil
}

// Example returns a template config file.
func Example() string {
	return `[run]
# Path to the uncertainty coefficient file.
Coefficients = beta.txt

# Particles are placed on a Cells^3 cubic lattice.
Cells = 4
LatticeConstant = 2.0

# Uniform random displacement applied to each coordinate.
Jitter = 0.1
Seed = 1

# Number of domain-owning ranks to simulate.
Ranks = 2

# Scores are written here; stdout when empty.
Output = scores.txt
`
}
