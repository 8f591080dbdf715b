package vrp

import (
	"fmt"
	"strings"
	"time"

	"borderfleet/internal/milp"
)

// RouteReport is one vehicle's tour with its cost split.
type RouteReport struct {
	Vehicle      int
	Stops        []string
	Km           float64
	LoadKg       float64
	FixedCost    float64
	DistanceCost float64
	TotalCost    float64
}

// Report summarizes a solved plan.
type Report struct {
	Status       milp.Status
	Objective    float64
	Gap          float64
	Wall         time.Duration
	Routes       []RouteReport
	VehiclesUsed int
	TotalKm      float64
	TotalLoadKg  float64
	FixedCost    float64
	DistanceCost float64
	TotalCost    float64
	Warnings     []string
}

// BuildReport prices the extracted routes with the fleet's cost parameters.
func BuildReport(inst Instance, routes []Route, sol *milp.Solution, warnings []string) Report {
	rep := Report{
		Status:    sol.Status,
		Objective: sol.Objective,
		Gap:       sol.Gap,
		Wall:      sol.Wall,
		Warnings:  warnings,
	}
	for _, r := range routes {
		rr := RouteReport{
			Vehicle:      r.Vehicle,
			Stops:        r.Stops,
			Km:           r.Km,
			LoadKg:       r.LoadKg,
			FixedCost:    inst.Fleet.FixedCost,
			DistanceCost: inst.Fleet.KmCost * r.Km,
		}
		rr.TotalCost = rr.FixedCost + rr.DistanceCost
		rep.Routes = append(rep.Routes, rr)
		rep.VehiclesUsed++
		rep.TotalKm += rr.Km
		rep.TotalLoadKg += rr.LoadKg
		rep.FixedCost += rr.FixedCost
		rep.DistanceCost += rr.DistanceCost
		rep.TotalCost += rr.TotalCost
	}
	return rep
}

// Text renders the report the way dispatchers read it: one block per
// vehicle, then the fleet totals.
func (r Report) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Solve status: %s (objective %.2f, gap %.2f%%, wall %s)\n", r.Status, r.Objective, 100*r.Gap, r.Wall.Round(time.Millisecond))
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "WARNING: %s\n", w)
	}
	fmt.Fprintf(&sb, "\n")
	for _, rr := range r.Routes {
		fmt.Fprintf(&sb, "Vehicle %d\n", rr.Vehicle)
		fmt.Fprintf(&sb, "  route:    %s\n", strings.Join(rr.Stops, " -> "))
		fmt.Fprintf(&sb, "  load:     %.0f kg\n", rr.LoadKg)
		fmt.Fprintf(&sb, "  distance: %.1f km\n", rr.Km)
		fmt.Fprintf(&sb, "  cost:     %.2f (fixed %.2f + distance %.2f)\n", rr.TotalCost, rr.FixedCost, rr.DistanceCost)
	}
	fmt.Fprintf(&sb, "\nVehicles used:  %d\n", r.VehiclesUsed)
	fmt.Fprintf(&sb, "Total distance: %.1f km\n", r.TotalKm)
	fmt.Fprintf(&sb, "Total load:     %.0f kg\n", r.TotalLoadKg)
	fmt.Fprintf(&sb, "Total cost:     %.2f (fixed %.2f + distance %.2f)\n", r.TotalCost, r.FixedCost, r.DistanceCost)
	return sb.String()
}
