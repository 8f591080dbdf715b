// Package vrp builds and solves the corridor fleet routing problem: a
// capacitated VRP whose every tour runs origin -> border exit -> border
// entry before fanning out to deliveries and returning to the origin.
package vrp

import (
	"borderfleet/internal/topology"
)

// ArcSet is the precomputed set of directed arcs a tour may use. It encodes
// the corridor rules once so the model builder and the extractor never
// re-derive them:
//
//  1. the only arc out of the origin leads to the border exit,
//  2. the only arc into the border exit comes from the origin,
//  3. the only arc out of the border exit leads to the border entry,
//  4. the only arc into the border entry comes from the border exit,
//  5. every other ordered pair between border entry, deliveries and the
//     origin is allowed, deliveries to origin included, origin outward
//     excluded.
type ArcSet struct {
	n    int
	out  [][]int
	in   [][]int
	has  []bool
	size int
}

// BuildArcs computes the allowed arc set for a topology and transit chain.
func BuildArcs(topo *topology.Topology, seq topology.Sequence) *ArcSet {
	n := topo.Len()
	a := &ArcSet{
		n:   n,
		out: make([][]int, n),
		in:  make([][]int, n),
		has: make([]bool, n*n),
	}
	a.add(seq.Origin, seq.BorderExit)
	a.add(seq.BorderExit, seq.BorderEntry)
	for i := 0; i < n; i++ {
		if i == seq.Origin || i == seq.BorderExit {
			continue
		}
		for j := 0; j < n; j++ {
			if j == i || j == seq.BorderExit || j == seq.BorderEntry {
				continue
			}
			a.add(i, j)
		}
	}
	return a
}

func (a *ArcSet) add(i, j int) {
	a.has[i*a.n+j] = true
	a.out[i] = append(a.out[i], j)
	a.in[j] = append(a.in[j], i)
	a.size++
}

// Has reports whether the arc i -> j is allowed.
func (a *ArcSet) Has(i, j int) bool { return a.has[i*a.n+j] }

// Out returns the allowed heads from i, in ascending index order.
func (a *ArcSet) Out(i int) []int { return a.out[i] }

// In returns the allowed tails into j, in ascending index order.
func (a *ArcSet) In(j int) []int { return a.in[j] }

// Len returns the number of allowed arcs.
func (a *ArcSet) Len() int { return a.size }

// Deliveries lists the non-transit location indexes in table order.
func Deliveries(topo *topology.Topology, seq topology.Sequence) []int {
	var out []int
	for i := 0; i < topo.Len(); i++ {
		if !seq.Contains(i) {
			out = append(out, i)
		}
	}
	return out
}
