/*package descriptor builds rotation-invariant descriptors of local atomic
environments. A Calc first expands every in-range neighbor into single-bond
values, products of a scaled radial basis and a real solid harmonic of the
bond vector, then contracts pairs of radial channels into the invariant
power spectrum. Derivatives with respect to the bond vectors are carried
through both stages.
*/
package descriptor

import (
	"math"

	"github.com/atomvar/atomvar/basis"
	"github.com/atomvar/atomvar/harmonics"
)

// Calc evaluates descriptors for one model's basis settings. It reuses
// internal scratch space across calls and is not safe for concurrent use.
type Calc struct {
	radial basis.Radial
	cutoff basis.Cutoff

	nSpecies, nMax, lMax int
	rCut                 float64
	nHarm                int

	rVals, rDervs []float64
	hVals, hGrads []float64
}

func NewCalc(radial basis.Radial, cutoff basis.Cutoff,
	nSpecies, nMax, lMax int, rCut float64) *Calc {

	nHarm := harmonics.Count(lMax)
	return &Calc{
		radial: radial, cutoff: cutoff,
		nSpecies: nSpecies, nMax: nMax, lMax: lMax,
		rCut: rCut, nHarm: nHarm,
		rVals:  make([]float64, nMax),
		rDervs: make([]float64, nMax),
		hVals:  make([]float64, nHarm),
		hGrads: make([]float64, 3*nHarm),
	}
}

// NRadial returns the number of radial channels, one per (species, n) pair.
func (c *Calc) NRadial() int { return c.nSpecies * c.nMax }

// SingleBondLen returns the length of the single-bond vector.
func (c *Calc) SingleBondLen() int { return c.NRadial() * c.nHarm }

// NDescriptors returns the length of the invariant descriptor vector: one
// scalar per unordered radial-channel pair per angular order.
func (c *Calc) NDescriptors() int {
	nr := c.NRadial()
	return nr * (nr + 1) / 2 * (c.lMax + 1)
}

// SingleBond accumulates the single-bond values of the filtered neighbors
// into vals and writes their derivatives into dervs. Row 3*k+comp of dervs
// is the derivative with respect to coordinate comp of the displacement
// from the center to neighbor k; its stride is SingleBondLen. vals must
// have length SingleBondLen and dervs 3*len(neigh)*SingleBondLen. Both are
// overwritten.
//
// Column layout: (species*nMax + n)*nHarm + lm, species 0-based.
func (c *Calc) SingleBond(center [3]float64, x [][3]float64, types []int,
	neigh []int, vals, dervs []float64) {

	sbLen := c.SingleBondLen()
	for i := range vals {
		vals[i] = 0
	}
	for i := range dervs[:3*len(neigh)*sbLen] {
		dervs[i] = 0
	}

	for k, j := range neigh {
		delx := x[j][0] - center[0]
		dely := x[j][1] - center[1]
		delz := x[j][2] - center[2]
		r := math.Sqrt(delx*delx + dely*dely + delz*delz)

		basis.Scaled(c.radial, c.cutoff, c.rVals, c.rDervs,
			r, c.nMax, c.rCut)
		harmonics.Eval(c.hVals, c.hGrads, delx, dely, delz, c.lMax)

		ux, uy, uz := delx/r, dely/r, delz/r
		s := types[j] - 1

		for n := 0; n < c.nMax; n++ {
			off := (s*c.nMax + n) * c.nHarm
			g, dg := c.rVals[n], c.rDervs[n]
			row := 3 * k * sbLen
			for lm := 0; lm < c.nHarm; lm++ {
				d := off + lm
				h := c.hVals[lm]
				vals[d] += g * h
				dervs[row+d] = dg*ux*h + g*c.hGrads[3*lm+0]
				dervs[row+sbLen+d] = dg*uy*h + g*c.hGrads[3*lm+1]
				dervs[row+2*sbLen+d] = dg*uz*h + g*c.hGrads[3*lm+2]
			}
		}
	}
}
