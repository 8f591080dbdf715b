// Package topology models the location set and the road distance table the
// planner runs against. Locations are addressed by dense index after an
// initial name resolution; all hot-path access is index based.
package topology

import (
	"fmt"
	"strings"
)

// DataIntegrityError reports a malformed distance table.
type DataIntegrityError struct {
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return "topology: " + e.Reason
}

// MissingLocationError reports a name with no entry in the table.
type MissingLocationError struct {
	Name       string
	Normalized string
}

func (e *MissingLocationError) Error() string {
	return fmt.Sprintf("topology: unknown location %q (normalized %q)", e.Name, e.Normalized)
}

// Sequence holds the resolved indexes of the mandatory transit chain:
// origin -> border exit -> border entry.
type Sequence struct {
	Origin      int
	BorderExit  int
	BorderEntry int
}

// Contains reports whether idx is one of the transit nodes.
func (s Sequence) Contains(idx int) bool {
	return idx == s.Origin || idx == s.BorderExit || idx == s.BorderEntry
}

// Topology is an immutable name list plus square distance table.
type Topology struct {
	names []string
	dist  [][]float64
	index map[string]int
}

// Normalize maps a location name to its lookup key: surrounding whitespace
// trimmed, case folded.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New validates the table against the name list and builds the lookup index.
func New(names []string, dist [][]float64) (*Topology, error) {
	n := len(names)
	if n == 0 {
		return nil, &DataIntegrityError{Reason: "empty location list"}
	}
	if len(dist) != n {
		return nil, &DataIntegrityError{Reason: fmt.Sprintf("distance table has %d rows for %d locations", len(dist), n)}
	}
	for i, row := range dist {
		if len(row) != n {
			return nil, &DataIntegrityError{Reason: fmt.Sprintf("row %d (%s) has %d columns, want %d", i, names[i], len(row), n)}
		}
		for j, d := range row {
			if d < 0 {
				return nil, &DataIntegrityError{Reason: fmt.Sprintf("negative distance %s -> %s: %v", names[i], names[j], d)}
			}
		}
	}
	idx := make(map[string]int, n)
	clean := make([]string, n)
	for i, name := range names {
		display := strings.TrimSpace(name)
		if display == "" {
			return nil, &DataIntegrityError{Reason: fmt.Sprintf("blank location name at row %d", i)}
		}
		key := Normalize(name)
		if prev, dup := idx[key]; dup {
			return nil, &DataIntegrityError{Reason: fmt.Sprintf("duplicate location %q (rows %d and %d)", display, prev, i)}
		}
		idx[key] = i
		clean[i] = display
	}
	return &Topology{names: clean, dist: dist, index: idx}, nil
}

// Len returns the number of locations.
func (t *Topology) Len() int { return len(t.names) }

// Name returns the display name for an index.
func (t *Topology) Name(i int) string { return t.names[i] }

// Names returns a copy of the display names in table order.
func (t *Topology) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Distance returns the table entry from i to j.
func (t *Topology) Distance(i, j int) float64 { return t.dist[i][j] }

// Lookup resolves a name to its index.
func (t *Topology) Lookup(name string) (int, error) {
	key := Normalize(name)
	i, ok := t.index[key]
	if !ok {
		return 0, &MissingLocationError{Name: name, Normalized: key}
	}
	return i, nil
}

// ResolveSequence resolves the transit chain names in one pass. The three
// nodes must be distinct.
func (t *Topology) ResolveSequence(origin, borderExit, borderEntry string) (Sequence, error) {
	o, err := t.Lookup(origin)
	if err != nil {
		return Sequence{}, err
	}
	x, err := t.Lookup(borderExit)
	if err != nil {
		return Sequence{}, err
	}
	e, err := t.Lookup(borderEntry)
	if err != nil {
		return Sequence{}, err
	}
	if o == x || x == e || o == e {
		return Sequence{}, &DataIntegrityError{Reason: "transit chain nodes must be distinct"}
	}
	return Sequence{Origin: o, BorderExit: x, BorderEntry: e}, nil
}
