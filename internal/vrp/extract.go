package vrp

import (
	"borderfleet/internal/milp"
)

// Route is one vehicle's reconstructed tour.
type Route struct {
	Vehicle int
	Stops   []string
	Km      float64
	LoadKg  float64
}

// Extract walks the engine assignment back into origin-rooted tours, one
// per used vehicle, following the single selected outbound arc at every
// stop. The walk is bounded at 2n+5 steps; a clean assignment returns to
// the origin well inside that.
func Extract(inst Instance, arcs *ArcSet, vars *Vars, sol *milp.Solution) ([]Route, error) {
	topo := inst.Topo
	guard := 2*topo.Len() + 5

	var routes []Route
	for t := range vars.Used {
		if !sol.Bool(vars.Used[t]) {
			continue
		}
		r := Route{Vehicle: t, Stops: []string{topo.Name(inst.Seq.Origin)}}
		cur := inst.Seq.Origin
		for step := 0; ; step++ {
			if step >= guard {
				return nil, &RouteReconstructionError{Vehicle: t, Location: topo.Name(cur), Reason: "walk exceeded step bound without returning to origin"}
			}
			next := -1
			for _, j := range arcs.Out(cur) {
				if !sol.Bool(vars.Arc[arcKey{t, cur, j}]) {
					continue
				}
				if next >= 0 {
					return nil, &RouteReconstructionError{Vehicle: t, Location: topo.Name(cur), Reason: "more than one outbound arc selected"}
				}
				next = j
			}
			if next < 0 {
				return nil, &RouteReconstructionError{Vehicle: t, Location: topo.Name(cur), Reason: "no outbound arc selected"}
			}
			r.Km += topo.Distance(cur, next)
			r.Stops = append(r.Stops, topo.Name(next))
			if k, ok := vars.DeliveryPos(next); ok {
				if vars.Load != nil {
					r.LoadKg += sol.Value(vars.Load[t][k])
				} else {
					r.LoadKg += float64(inst.Demands[next])
				}
			}
			cur = next
			if cur == inst.Seq.Origin {
				break
			}
		}
		routes = append(routes, r)
	}
	return routes, nil
}
