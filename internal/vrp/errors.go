package vrp

import (
	"fmt"
	"strings"
	"time"
)

// InfeasibleDemandError reports a single delivery no vehicle can carry.
// Raised before the engine runs; split-delivery mode lifts the limit.
type InfeasibleDemandError struct {
	Location   string
	DemandKg   int64
	CapacityKg int64
}

func (e *InfeasibleDemandError) Error() string {
	return fmt.Sprintf("vrp: demand at %s (%d kg) exceeds vehicle capacity (%d kg)", e.Location, e.DemandKg, e.CapacityKg)
}

// RouteReconstructionError reports an engine assignment that does not form
// clean origin-rooted tours.
type RouteReconstructionError struct {
	Vehicle  int
	Location string
	Reason   string
}

func (e *RouteReconstructionError) Error() string {
	return fmt.Sprintf("vrp: vehicle %d route broken at %s: %s", e.Vehicle, e.Location, e.Reason)
}

// EngineInfeasibleError reports a proven-infeasible model, with the
// conflicting constraint groups when the engine could isolate them.
type EngineInfeasibleError struct {
	Groups []string
}

func (e *EngineInfeasibleError) Error() string {
	if len(e.Groups) == 0 {
		return "vrp: model proven infeasible"
	}
	return "vrp: model proven infeasible; conflicting constraint groups: " + strings.Join(e.Groups, ", ")
}

// EngineTimeLimitError reports a solve that hit its budget without any
// usable incumbent.
type EngineTimeLimitError struct {
	Limit time.Duration
}

func (e *EngineTimeLimitError) Error() string {
	return fmt.Sprintf("vrp: no solution found within %s", e.Limit)
}
