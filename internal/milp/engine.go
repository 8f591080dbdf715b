package milp

import (
	"context"
	"time"
)

// Status is the engine-reported outcome of a solve.
type Status int

const (
	// StatusOptimal: proven optimal within the configured gap.
	StatusOptimal Status = iota
	// StatusTimeLimit: the time budget ran out with an incumbent available.
	StatusTimeLimit
	// StatusInfeasible: the model admits no solution.
	StatusInfeasible
	// StatusUnsolved: no incumbent and no infeasibility proof.
	StatusUnsolved
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusTimeLimit:
		return "time_limit"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unsolved"
	}
}

// Emphasis steers the engine's search balance.
type Emphasis int

const (
	EmphasisBalanced Emphasis = iota
	EmphasisFeasibility
	EmphasisBound
)

// Params tunes a solve. Zero values leave the engine defaults in place;
// integer levels follow the engine's own scale.
type Params struct {
	TimeLimit   time.Duration
	RelativeGap float64
	Emphasis    Emphasis
	Symmetry    int
	Presolve    int
	Cuts        int
	Workers     int
	LogProgress bool
}

// Solution carries the outcome of a solve. Values is indexed by Var and is
// nil unless the status provides an assignment.
type Solution struct {
	Status    Status
	Objective float64
	Bound     float64
	Gap       float64
	Wall      time.Duration
	Values    []float64
}

// Value returns the assignment for v.
func (s *Solution) Value(v Var) float64 {
	return s.Values[v]
}

// Bool reads v as a binary decision.
func (s *Solution) Bool(v Var) bool {
	return s.Values[v] > 0.5
}

// Engine solves a model. Implementations must honor ctx cancellation and
// return StatusUnsolved rather than blocking past the deadline.
type Engine interface {
	Solve(ctx context.Context, m *Model, p Params) (*Solution, error)
}

// Explainer is optionally implemented by engines that can narrow an
// infeasible model down to a conflicting set of constraint groups.
type Explainer interface {
	Explain(ctx context.Context, m *Model, p Params) ([]string, error)
}
