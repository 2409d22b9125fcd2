/*package domain splits a simulation box into slabs along x, one per rank,
and builds everything the estimator consumes on each rank: the local
particle set (owned particles followed by boundary copies), brute-force
neighbor candidate lists, and the halo exchange plan that routes boundary
partial scores back to their owners.
*/
package domain

import (
	"golang.org/x/exp/slices"

	"github.com/atomvar/atomvar"
	"github.com/atomvar/atomvar/comm"
)

// candidateSlack widens the candidate cutoff past the model cutoff so the
// strict filter inside the estimator is the one that decides membership.
const candidateSlack = 1.2

// Local is one rank's view of the decomposed box.
type Local struct {
	Sys *atomvar.System

	// Global maps local particle indices to global ones, owned first.
	Global []int

	Plan Plan
}

// Plan describes one rank's part of the halo reduction.
type Plan struct {
	// Send lists this rank's contiguous ghost ranges grouped by owner.
	Send []Block
	// Recv lists incoming partials and the owned local indices they
	// reconcile into, in the sender's packing order.
	Recv []Targets
}

type Block struct {
	To, First, N int
}

type Targets struct {
	From  int
	Local []int
}

type ghost struct {
	global, owner int
}

// Decompose splits the particles into size slabs along x with a ghost
// shell of width rc on either side of each slab. Every particle is owned
// by exactly one rank; copies within rc of a foreign slab appear there as
// ghosts, grouped by owner.
func Decompose(x [][3]float64, types []int, size int, rc float64) []*Local {
	if size < 1 {
		panic("decomposition size must be positive.")
	}

	lo, hi := x[0][0], x[0][0]
	for _, p := range x {
		if p[0] < lo {
			lo = p[0]
		}
		if p[0] > hi {
			hi = p[0]
		}
	}
	width := (hi - lo) / float64(size)

	owner := func(i int) int {
		if width == 0 {
			return 0
		}
		o := int((x[i][0] - lo) / width)
		if o >= size {
			o = size - 1
		}
		return o
	}

	owned := make([][]int, size)
	for i := range x {
		o := owner(i)
		owned[o] = append(owned[o], i)
	}

	// ownerLocal[g] is the local index of global particle g on its owner.
	ownerLocal := make([]int, len(x))
	for _, ids := range owned {
		for k, g := range ids {
			ownerLocal[g] = k
		}
	}

	locals := make([]*Local, size)
	for r := 0; r < size; r++ {
		locals[r] = &Local{Sys: &atomvar.System{NewtonPair: true}}
	}

	for r := 0; r < size; r++ {
		slabLo := lo + width*float64(r)
		slabHi := slabLo + width

		ghosts := []ghost{}
		for i := range x {
			o := owner(i)
			if o == r {
				continue
			}
			d := 0.0
			if x[i][0] < slabLo {
				d = slabLo - x[i][0]
			} else if x[i][0] > slabHi {
				d = x[i][0] - slabHi
			}
			if d < rc {
				ghosts = append(ghosts, ghost{i, o})
			}
		}
		slices.SortFunc(ghosts, func(a, b ghost) int {
			if a.owner != b.owner {
				return a.owner - b.owner
			}
			return a.global - b.global
		})

		l := locals[r]
		l.Global = append([]int{}, owned[r]...)
		for _, g := range ghosts {
			l.Global = append(l.Global, g.global)
		}
		l.Sys.NLocal = len(owned[r])
		l.Sys.NGhost = len(ghosts)
		l.Sys.X = make([][3]float64, len(l.Global))
		l.Sys.Type = make([]int, len(l.Global))
		for k, g := range l.Global {
			l.Sys.X[k] = x[g]
			l.Sys.Type[k] = types[g]
		}

		// Ghosts are contiguous per owner, so each group is one block of
		// the send side and one target list on the owner.
		for a := 0; a < len(ghosts); {
			b := a
			for b < len(ghosts) && ghosts[b].owner == ghosts[a].owner {
				b++
			}
			o := ghosts[a].owner
			l.Plan.Send = append(l.Plan.Send, Block{
				To: o, First: l.Sys.NLocal + a, N: b - a,
			})
			targets := make([]int, b-a)
			for k := a; k < b; k++ {
				targets[k-a] = ownerLocal[ghosts[k].global]
			}
			locals[o].Plan.Recv = append(locals[o].Plan.Recv, Targets{
				From: r, Local: targets,
			})
			a = b
		}
	}

	for r := 0; r < size; r++ {
		buildCandidates(locals[r], rc*candidateSlack)
	}
	return locals
}

// buildCandidates fills the broad-cutoff neighbor candidate lists of the
// owned particles by brute force over the local set.
func buildCandidates(l *Local, rcCand float64) {
	sys := l.Sys
	rc2 := rcCand * rcCand
	sys.Neigh = make([][]int, sys.NLocal)
	for i := 0; i < sys.NLocal; i++ {
		for j := range sys.X {
			if j == i {
				continue
			}
			delx := sys.X[j][0] - sys.X[i][0]
			dely := sys.X[j][1] - sys.X[i][1]
			delz := sys.X[j][2] - sys.X[i][2]
			if delx*delx+dely*dely+delz*delz < rc2 {
				sys.Neigh[i] = append(sys.Neigh[i], j)
			}
		}
	}
}

// ReverseSum completes the halo reduction for one rank: boundary partial
// scores travel to their owners and are summed into the owned entries.
// Collective across the group; must run after the step's compute.
func (l *Local) ReverseSum(r *comm.Rank, e atomvar.PerParticle) {
	for _, b := range l.Plan.Send {
		buf := make([]float64, 3*b.N)
		e.PackBoundary(b.First, b.N, buf)
		r.SendFloat64s(b.To, buf)
	}
	for _, t := range l.Plan.Recv {
		e.UnpackBoundary(t.Local, r.RecvFloat64s(t.From))
	}
}
