/*package harmonics evaluates real solid harmonics and their cartesian
gradients. These are the homogeneous-polynomial forms r^l Y_lm(theta, phi) of
the orthonormal real spherical harmonics, so they are smooth everywhere,
including the origin, and their gradients are exact polynomials.

Harmonics are indexed l*l + l + m for l = 0..lmax, m = -l..l.
*/
package harmonics

import (
	"math"
)

// Count returns the number of harmonics with order at most lmax.
func Count(lmax int) int { return (lmax + 1) * (lmax + 1) }

// Index returns the flat index of the (l, m) harmonic.
func Index(l, m int) int { return l*l + l + m }

// Eval fills vals with the real solid harmonics of the displacement
// (x, y, z) for all l <= lmax, and grads with the cartesian gradient of each:
// grads[3*i+c] is the derivative of harmonic i with respect to coordinate c.
// vals has length Count(lmax), grads three times that.
//
// The decomposition is r^l Y_lm = N_lm P(l, m; z, r^2) A_m(x, y) for m >= 0
// and the matching B_m(x, y) form for m < 0, where P follows the associated
// Legendre recurrences with the (x^2+y^2)^(m/2) factor folded into A and B.
func Eval(vals, grads []float64, x, y, z float64, lmax int) {
	q := x*x + y*y + z*z // r^2, a polynomial coordinate alongside z

	// P[m][l-m] holds the value of P(l, m) and its partials with respect
	// to z and r^2. Small lmax makes the nested slices cheap.
	type poly struct{ v, dz, dq float64 }
	p := make([][]poly, lmax+1)
	for m := 0; m <= lmax; m++ {
		p[m] = make([]poly, lmax-m+1)
	}

	p[0][0] = poly{1, 0, 0}
	for m := 1; m <= lmax; m++ {
		p[m][0] = poly{float64(2*m-1) * p[m-1][0].v, 0, 0}
	}
	for m := 0; m < lmax; m++ {
		pm := p[m][0]
		c := float64(2*m + 1)
		p[m][1] = poly{c * z * pm.v, c * (pm.v + z*pm.dz), c * z * pm.dq}
	}
	for m := 0; m <= lmax; m++ {
		for l := m + 2; l <= lmax; l++ {
			a := float64(2*l-1) / float64(l-m)
			b := float64(l+m-1) / float64(l-m)
			p1, p2 := p[m][l-1-m], p[m][l-2-m]
			p[m][l-m] = poly{
				a*z*p1.v - b*q*p2.v,
				a*(p1.v+z*p1.dz) - b*q*p2.dz,
				a*z*p1.dq - b*(p2.v+q*p2.dq),
			}
		}
	}

	// A_m = Re((x+iy)^m), B_m = Im((x+iy)^m) and their exact partials:
	// dA_m/dx = m A_{m-1}, dA_m/dy = -m B_{m-1}, dB_m/dx = m B_{m-1},
	// dB_m/dy = m A_{m-1}.
	aa := make([]float64, lmax+1)
	bb := make([]float64, lmax+1)
	aa[0], bb[0] = 1, 0
	for m := 1; m <= lmax; m++ {
		aa[m] = x*aa[m-1] - y*bb[m-1]
		bb[m] = x*bb[m-1] + y*aa[m-1]
	}

	set := func(i int, pv poly, ang, dax, day float64, norm float64) {
		// Cartesian partials of P(z, r^2): x and y enter only through r^2.
		px := pv.dq * 2 * x
		py := pv.dq * 2 * y
		pz := pv.dz + pv.dq*2*z

		vals[i] = norm * pv.v * ang
		grads[3*i+0] = norm * (px*ang + pv.v*dax)
		grads[3*i+1] = norm * (py*ang + pv.v*day)
		grads[3*i+2] = norm * pz * ang
	}

	for l := 0; l <= lmax; l++ {
		n0 := math.Sqrt(float64(2*l+1) / (4 * math.Pi))
		set(Index(l, 0), p[0][l], 1, 0, 0, n0)

		for m := 1; m <= l; m++ {
			nm := math.Sqrt(float64(2*l+1) / (2 * math.Pi) *
				factRatio(l-m, l+m))
			pv := p[m][l-m]
			fm := float64(m)
			set(Index(l, m), pv, aa[m], fm*aa[m-1], -fm*bb[m-1], nm)
			set(Index(l, -m), pv, bb[m], fm*bb[m-1], fm*aa[m-1], nm)
		}
	}
}

// factRatio returns a! / b! for a <= b.
func factRatio(a, b int) float64 {
	r := 1.0
	for k := a + 1; k <= b; k++ {
		r /= float64(k)
	}
	return r
}
