/*package basis holds the pluggable radial bases and cutoff envelopes used to
build single-bond descriptors. Both are selected by name at load time and
evaluate values together with derivatives with respect to the pair distance.
*/
package basis

import (
	"fmt"
	"math"
)

// Cutoff smoothly sends a pair contribution to zero at the cutoff radius.
// Eval returns the envelope value and its derivative with respect to r.
// Beyond rc both are zero.
type Cutoff func(r, rc float64) (f, df float64)

// Quadratic is the (r - rc)^2 envelope.
func Quadratic(r, rc float64) (f, df float64) {
	if r > rc {
		return 0, 0
	}
	d := r - rc
	return d * d, 2 * d
}

// Cosine is the (1 + cos(pi r/rc))/2 envelope.
func Cosine(r, rc float64) (f, df float64) {
	if r > rc {
		return 0, 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*r/rc)),
		-0.5 * math.Pi / rc * math.Sin(math.Pi*r/rc)
}

var cutoffs = map[string]Cutoff{
	"quadratic": Quadratic,
	"cosine":    Cosine,
}

// CutoffByName resolves a cutoff envelope from its model-file token.
func CutoffByName(name string) (Cutoff, error) {
	c, ok := cutoffs[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized cutoff function '%s'", name)
	}
	return c, nil
}
