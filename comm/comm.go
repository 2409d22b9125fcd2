/*package comm provides the collective communication the estimator needs: a
broadcast at load time and point-to-point buffer exchange for the halo
reduction. A Group is a fixed set of ranks wired together with channels, one
goroutine per rank, standing in for however the launcher actually connects
the domain-owning processes.

Every operation is collective or pairwise and blocks until its counterpart
arrives. There are no timeouts: a rank that skips a collective stalls the
whole group, which mirrors the fatal nature of a mismatched exchange.
*/
package comm

type message struct {
	floats []float64
	ints   []int
	str    string
}

// Rank is one member of a group. Methods on distinct ranks of the same
// group are safe to call concurrently; a single rank is driven by a single
// control flow.
type Rank struct {
	rank, size int
	mesh       [][]chan message // mesh[from][to]
}

// NewGroup wires up size ranks and returns them. Each rank is meant to be
// driven by its own goroutine.
func NewGroup(size int) []*Rank {
	if size < 1 {
		panic("group size must be positive.")
	}

	mesh := make([][]chan message, size)
	for i := range mesh {
		mesh[i] = make([]chan message, size)
		for j := range mesh[i] {
			mesh[i][j] = make(chan message, 4)
		}
	}

	ranks := make([]*Rank, size)
	for i := range ranks {
		ranks[i] = &Rank{rank: i, size: size, mesh: mesh}
	}
	return ranks
}

// Self returns the sole rank of a single-process group, for which every
// collective is a no-op.
func Self() *Rank { return NewGroup(1)[0] }

func (r *Rank) Rank() int { return r.rank }
func (r *Rank) Size() int { return r.size }

func (r *Rank) send(to int, m message) { r.mesh[r.rank][to] <- m }
func (r *Rank) recv(from int) message  { return <-r.mesh[from][r.rank] }

// SendFloat64s delivers a copy of xs to the given rank.
func (r *Rank) SendFloat64s(to int, xs []float64) {
	buf := make([]float64, len(xs))
	copy(buf, xs)
	r.send(to, message{floats: buf})
}

// RecvFloat64s blocks until a float buffer from the given rank arrives.
func (r *Rank) RecvFloat64s(from int) []float64 {
	return r.recv(from).floats
}

// BcastFloat64s distributes root's xs to every rank and returns it. Only
// the value passed on the root rank is used.
func (r *Rank) BcastFloat64s(root int, xs []float64) []float64 {
	if r.rank == root {
		for to := 0; to < r.size; to++ {
			if to != root {
				r.SendFloat64s(to, xs)
			}
		}
		return xs
	}
	return r.RecvFloat64s(root)
}

// BcastInts distributes root's xs to every rank and returns it.
func (r *Rank) BcastInts(root int, xs []int) []int {
	if r.rank == root {
		for to := 0; to < r.size; to++ {
			if to != root {
				buf := make([]int, len(xs))
				copy(buf, xs)
				r.send(to, message{ints: buf})
			}
		}
		return xs
	}
	return r.recv(root).ints
}

// BcastString distributes root's s to every rank and returns it.
func (r *Rank) BcastString(root int, s string) string {
	if r.rank == root {
		for to := 0; to < r.size; to++ {
			if to != root {
				r.send(to, message{str: s})
			}
		}
		return s
	}
	return r.recv(root).str
}

// BcastError shares a coordinator-only failure with the whole group: root
// passes a nonzero status when its local step failed, and every rank
// learns whether to abort instead of stalling in the next collective.
func BcastError(r *Rank, root, status int) bool {
	return r.BcastInts(root, []int{status})[0] != 0
}

// ReduceInto adds a packed flat buffer of 3-component values into the
// targeted rows of dst: buf holds len(targets) consecutive triples. This is
// the whole of the halo reduction once transport has delivered the buffer.
func ReduceInto(dst [][3]float64, targets []int, buf []float64) {
	for i, j := range targets {
		dst[j][0] += buf[3*i+0]
		dst[j][1] += buf[3*i+1]
		dst[j][2] += buf[3*i+2]
	}
}
