package vrp

import (
	"fmt"
	"sort"

	"borderfleet/internal/topology"
)

// Fleet holds the homogeneous vehicle parameters.
type Fleet struct {
	Vehicles   int
	CapacityKg int64
	FixedCost  float64
	KmCost     float64
}

// Instance is one fully resolved planning problem.
type Instance struct {
	Topo    *topology.Topology
	Seq     topology.Sequence
	Demands map[int]int64
	Fleet   Fleet
}

// NewInstance resolves name-keyed demands against the topology. Demands on
// transit nodes must be zero; deliveries without an entry default to zero
// and still get visited.
func NewInstance(topo *topology.Topology, seq topology.Sequence, demands map[string]int64, fleet Fleet) (Instance, error) {
	if fleet.Vehicles <= 0 {
		return Instance{}, fmt.Errorf("vrp: fleet needs at least one vehicle")
	}
	if fleet.CapacityKg <= 0 {
		return Instance{}, fmt.Errorf("vrp: vehicle capacity must be positive")
	}
	resolved := make(map[int]int64, len(demands))
	for name, kg := range demands {
		idx, err := topo.Lookup(name)
		if err != nil {
			return Instance{}, fmt.Errorf("vrp: demand entry: %w", err)
		}
		if kg < 0 {
			return Instance{}, fmt.Errorf("vrp: negative demand %d kg at %s", kg, topo.Name(idx))
		}
		if seq.Contains(idx) {
			if kg != 0 {
				return Instance{}, fmt.Errorf("vrp: transit node %s cannot carry demand (%d kg)", topo.Name(idx), kg)
			}
			continue
		}
		resolved[idx] = kg
	}
	return Instance{Topo: topo, Seq: seq, Demands: resolved, Fleet: fleet}, nil
}

// TotalDemandKg sums the delivery demands.
func (inst Instance) TotalDemandKg() int64 {
	var total int64
	for _, kg := range inst.Demands {
		total += kg
	}
	return total
}

// CheckDemands runs the pre-solve feasibility screens. A single demand above
// vehicle capacity is a hard error unless split deliveries are on; a fleet
// too small for the total demand only warns, the engine delivers the proof.
func CheckDemands(inst Instance, opts Options) ([]string, error) {
	if !opts.SplitDeliveries {
		idxs := make([]int, 0, len(inst.Demands))
		for idx := range inst.Demands {
			idxs = append(idxs, idx)
		}
		sort.Ints(idxs)
		for _, idx := range idxs {
			if inst.Demands[idx] > inst.Fleet.CapacityKg {
				return nil, &InfeasibleDemandError{
					Location:   inst.Topo.Name(idx),
					DemandKg:   inst.Demands[idx],
					CapacityKg: inst.Fleet.CapacityKg,
				}
			}
		}
	}
	var warnings []string
	total := inst.TotalDemandKg()
	minVehicles := int((total + inst.Fleet.CapacityKg - 1) / inst.Fleet.CapacityKg)
	if minVehicles > inst.Fleet.Vehicles {
		warnings = append(warnings, fmt.Sprintf(
			"total demand %d kg needs at least %d vehicles, fleet has %d",
			total, minVehicles, inst.Fleet.Vehicles))
	}
	return warnings, nil
}
