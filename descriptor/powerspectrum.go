package descriptor

import (
	"github.com/viterin/vek"
)

// PowerSpectrum contracts single-bond data into the invariant descriptor:
// vals[(n1, n2, l)] = sum_m sb[n1, l, m] * sb[n2, l, m] over unordered
// radial-channel pairs n1 <= n2 and angular orders l <= lMax, with the pair
// index running fastest over l. dervs receives the matching contraction of
// sbDervs by the product rule, laid out like sbDervs with stride
// NDescriptors and 3*nInner rows.
//
// The returned normSq is the squared norm of vals, and envDot[row] the dot
// product of derivative row with vals. Both feed the energy-normalized
// variant of the score and are otherwise unused.
func (c *Calc) PowerSpectrum(sbVals, sbDervs []float64, nInner int,
	vals, dervs, envDot []float64) (normSq float64) {

	nd := c.NDescriptors()
	sbLen := c.SingleBondLen()
	nRows := 3 * nInner

	for i := range vals[:nd] {
		vals[i] = 0
	}
	for i := range dervs[:nRows*nd] {
		dervs[i] = 0
	}

	counter := 0
	for n1 := 0; n1 < c.NRadial(); n1++ {
		for n2 := n1; n2 < c.NRadial(); n2++ {
			for l := 0; l <= c.lMax; l++ {
				for m := 0; m < 2*l+1; m++ {
					i1 := n1*c.nHarm + l*l + m
					i2 := n2*c.nHarm + l*l + m
					v1, v2 := sbVals[i1], sbVals[i2]
					vals[counter] += v1 * v2
					for row := 0; row < nRows; row++ {
						dervs[row*nd+counter] +=
							sbDervs[row*sbLen+i1]*v2 +
								v1*sbDervs[row*sbLen+i2]
					}
				}
				counter++
			}
		}
	}

	normSq = vek.Dot(vals[:nd], vals[:nd])
	for row := 0; row < nRows; row++ {
		envDot[row] = vek.Dot(dervs[row*nd:(row+1)*nd], vals[:nd])
	}
	return normSq
}
