package basis

import (
	"math"
	"testing"
)

func almostEq(x, y, eps float64) bool { return math.Abs(x-y) < eps }

func TestCutoffByName(t *testing.T) {
	table := []struct {
		name string
		ok   bool
	}{
		{"quadratic", true},
		{"cosine", true},
		{"", false},
		{"Quadratic", false},
		{"tanh", false},
	}

	for i, line := range table {
		c, err := CutoffByName(line.name)
		if line.ok && (err != nil || c == nil) {
			t.Errorf("%d) CutoffByName(%q) failed: %v", i, line.name, err)
		} else if !line.ok && err == nil {
			t.Errorf("%d) CutoffByName(%q) did not fail.", i, line.name)
		}
	}
}

func TestRadialByName(t *testing.T) {
	if _, err := RadialByName("chebyshev"); err != nil {
		t.Errorf("RadialByName(chebyshev) failed: %v", err)
	}
	if _, err := RadialByName("bessel"); err == nil {
		t.Errorf("RadialByName(bessel) did not fail.")
	}
}

func TestCutoffValues(t *testing.T) {
	rc := 3.0

	f, df := Quadratic(1.0, rc)
	if !almostEq(f, 4.0, 1e-12) || !almostEq(df, -4.0, 1e-12) {
		t.Errorf("Quadratic(1, 3) = %g, %g", f, df)
	}

	f, df = Cosine(1.5, rc)
	if !almostEq(f, 0.5, 1e-12) || !almostEq(df, -0.5*math.Pi/rc, 1e-12) {
		t.Errorf("Cosine(1.5, 3) = %g, %g", f, df)
	}

	// Both envelopes vanish at and beyond the cutoff.
	for _, c := range []Cutoff{Quadratic, Cosine} {
		f, _ := c(rc, rc)
		if !almostEq(f, 0, 1e-12) {
			t.Errorf("envelope nonzero at cutoff: %g", f)
		}
		f, df = c(rc+0.5, rc)
		if f != 0 || df != 0 {
			t.Errorf("envelope nonzero beyond cutoff: %g, %g", f, df)
		}
	}
}

func TestChebyshevValues(t *testing.T) {
	// With r1 = 0, r2 = 2 the midpoint maps to x = 0.
	n := 5
	vals := make([]float64, n)
	derivs := make([]float64, n)

	Chebyshev(vals, derivs, 1.0, n, 0, 2)
	want := []float64{1, 0, -1, 0, 1} // T_k(0)
	for k := range want {
		if !almostEq(vals[k], want[k], 1e-12) {
			t.Errorf("T_%d(0) = %g, want %g", k, vals[k], want[k])
		}
	}

	// r = r2 maps to x = 1 where T_k = 1 and T_k' = k^2.
	Chebyshev(vals, derivs, 2.0, n, 0, 2)
	for k := 0; k < n; k++ {
		if !almostEq(vals[k], 1, 1e-12) {
			t.Errorf("T_%d(1) = %g, want 1", k, vals[k])
		}
		if !almostEq(derivs[k], float64(k*k), 1e-12) {
			t.Errorf("dT_%d/dr at x=1 = %g, want %g", k, derivs[k], float64(k*k))
		}
	}
}

func TestChebyshevDerivFiniteDiff(t *testing.T) {
	n := 6
	rc := 4.0
	h := 1e-6

	vals := make([]float64, n)
	derivs := make([]float64, n)
	lo := make([]float64, n)
	hi := make([]float64, n)
	tmp := make([]float64, n)

	for _, r := range []float64{0.3, 1.1, 2.7, 3.9} {
		Chebyshev(vals, derivs, r, n, 0, rc)
		Chebyshev(lo, tmp, r-h, n, 0, rc)
		Chebyshev(hi, tmp, r+h, n, 0, rc)
		for k := 0; k < n; k++ {
			num := (hi[k] - lo[k]) / (2 * h)
			if !almostEq(derivs[k], num, 1e-5) {
				t.Errorf("dT_%d/dr(%g) = %g, finite diff %g", k, r, derivs[k], num)
			}
		}
	}
}

func TestScaledDerivFiniteDiff(t *testing.T) {
	n := 4
	rc := 3.0
	h := 1e-6

	vals := make([]float64, n)
	derivs := make([]float64, n)
	lo := make([]float64, n)
	hi := make([]float64, n)
	tmp := make([]float64, n)

	for _, cut := range []Cutoff{Quadratic, Cosine} {
		for _, r := range []float64{0.5, 1.4, 2.6} {
			Scaled(Chebyshev, cut, vals, derivs, r, n, rc)
			Scaled(Chebyshev, cut, lo, tmp, r-h, n, rc)
			Scaled(Chebyshev, cut, hi, tmp, r+h, n, rc)
			for k := 0; k < n; k++ {
				num := (hi[k] - lo[k]) / (2 * h)
				if !almostEq(derivs[k], num, 1e-5) {
					t.Errorf("scaled deriv %d at r=%g: %g, finite diff %g",
						k, r, derivs[k], num)
				}
			}
		}
	}
}
