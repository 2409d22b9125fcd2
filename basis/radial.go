package basis

import (
	"fmt"
)

// Radial evaluates n basis function values at pair distance r into vals and
// their derivatives with respect to r into derivs. Both slices have length n.
// r1 and r2 bound the support of the basis; for the bases shipped here
// r1 = 0 and r2 is the cutoff radius.
type Radial func(vals, derivs []float64, r float64, n int, r1, r2 float64)

// Chebyshev fills vals with the Chebyshev polynomials T_0..T_{n-1} of the
// distance mapped linearly from [r1, r2] onto [-1, 1].
func Chebyshev(vals, derivs []float64, r float64, n int, r1, r2 float64) {
	dxdr := 2 / (r2 - r1)
	x := (r-r1)*dxdr - 1

	if n > 0 {
		vals[0], derivs[0] = 1, 0
	}
	if n > 1 {
		vals[1], derivs[1] = x, dxdr
	}
	for k := 2; k < n; k++ {
		vals[k] = 2*x*vals[k-1] - vals[k-2]
		derivs[k] = 2*dxdr*vals[k-1] + 2*x*derivs[k-1] - derivs[k-2]
	}
}

var radials = map[string]Radial{
	"chebyshev": Chebyshev,
}

// RadialByName resolves a radial basis from its model-file token.
func RadialByName(name string) (Radial, error) {
	r, ok := radials[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized radial basis '%s'", name)
	}
	return r, nil
}

// Scaled combines a radial basis with a cutoff envelope: vals[k] becomes
// R_k(r) f(r) and derivs[k] the full d/dr by the product rule. This is the
// radial factor the single-bond builder consumes.
func Scaled(radial Radial, cut Cutoff, vals, derivs []float64,
	r float64, n int, rc float64) {

	radial(vals, derivs, r, n, 0, rc)
	f, df := cut(r, rc)
	for k := 0; k < n; k++ {
		derivs[k] = derivs[k]*f + vals[k]*df
		vals[k] *= f
	}
}
