package vrp

import (
	"fmt"
	"strings"

	"borderfleet/internal/milp"
	"borderfleet/internal/topology"
)

// Options selects model variants.
type Options struct {
	// SplitDeliveries lets several vehicles share one delivery's load.
	// Off by default: every delivery is served by exactly one vehicle.
	SplitDeliveries bool
}

type arcKey struct {
	T, I, J int
}

// Vars maps the model's decision variables back to fleet and topology
// indexes for extraction and reporting.
type Vars struct {
	Used       []milp.Var
	Arc        map[arcKey]milp.Var
	Visit      [][]milp.Var
	Order      [][]milp.Var
	Load       [][]milp.Var
	Deliveries []int
	pos        map[int]int
}

// DeliveryPos returns the dense position of delivery index j.
func (v *Vars) DeliveryPos(j int) (int, bool) {
	k, ok := v.pos[j]
	return k, ok
}

func nameKey(name string) string {
	return strings.ReplaceAll(topology.Normalize(name), " ", "_")
}

// Build assembles the MILP for an instance over its allowed arcs. Variable
// and constraint names are deterministic functions of the input so repeated
// builds dump byte-identical LP files.
func Build(inst Instance, arcs *ArcSet, opts Options) (*milp.Model, *Vars) {
	topo := inst.Topo
	n := topo.Len()
	T := inst.Fleet.Vehicles
	dels := Deliveries(topo, inst.Seq)
	nd := len(dels)

	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = nameKey(topo.Name(i))
	}

	m := milp.NewModel("truckplan")
	vars := &Vars{
		Used:       make([]milp.Var, T),
		Arc:        make(map[arcKey]milp.Var, T*arcs.Len()),
		Visit:      make([][]milp.Var, T),
		Order:      make([][]milp.Var, T),
		Deliveries: dels,
		pos:        make(map[int]int, nd),
	}
	for k, j := range dels {
		vars.pos[j] = k
	}

	for t := 0; t < T; t++ {
		vars.Used[t] = m.AddBinary(fmt.Sprintf("used[%d]", t), inst.Fleet.FixedCost)
	}
	for t := 0; t < T; t++ {
		for i := 0; i < n; i++ {
			for _, j := range arcs.Out(i) {
				name := fmt.Sprintf("arc[%d][%s][%s]", t, keys[i], keys[j])
				vars.Arc[arcKey{t, i, j}] = m.AddBinary(name, inst.Fleet.KmCost*topo.Distance(i, j))
			}
		}
	}
	for t := 0; t < T; t++ {
		vars.Visit[t] = make([]milp.Var, nd)
		for k, j := range dels {
			vars.Visit[t][k] = m.AddBinary(fmt.Sprintf("visit[%d][%s]", t, keys[j]), 0)
		}
	}
	for t := 0; t < T; t++ {
		vars.Order[t] = make([]milp.Var, nd)
		for k, j := range dels {
			vars.Order[t][k] = m.AddInteger(fmt.Sprintf("order[%d][%s]", t, keys[j]), 1, float64(max(nd, 1)), 0)
		}
	}
	if opts.SplitDeliveries {
		vars.Load = make([][]milp.Var, T)
		for t := 0; t < T; t++ {
			vars.Load[t] = make([]milp.Var, nd)
			for k, j := range dels {
				hi := float64(inst.Demands[j])
				vars.Load[t][k] = m.AddContinuous(fmt.Sprintf("load[%d][%s]", t, keys[j]), 0, hi, 0)
			}
		}
	}

	inOut := func(t, node int, tag string) {
		out := milp.NewExpr()
		for _, j := range arcs.Out(node) {
			out.Add(vars.Arc[arcKey{t, node, j}])
		}
		out.Sub(vars.Used[t])
		m.AddEQ(fmt.Sprintf("%s_out[%d]", tag, t), out, 0)

		in := milp.NewExpr()
		for _, i := range arcs.In(node) {
			in.Add(vars.Arc[arcKey{t, i, node}])
		}
		in.Sub(vars.Used[t])
		m.AddEQ(fmt.Sprintf("%s_in[%d]", tag, t), in, 0)
	}

	for t := 0; t < T; t++ {
		// Corridor chain: origin, border exit and border entry are entered
		// and left exactly once per used vehicle.
		inOut(t, inst.Seq.Origin, "origin")
		inOut(t, inst.Seq.BorderExit, "exit")
		inOut(t, inst.Seq.BorderEntry, "entry")

		for v := 0; v < n; v++ {
			if v == inst.Seq.Origin {
				continue
			}
			flow := milp.NewExpr()
			for _, i := range arcs.In(v) {
				flow.Add(vars.Arc[arcKey{t, i, v}])
			}
			for _, j := range arcs.Out(v) {
				flow.Sub(vars.Arc[arcKey{t, v, j}])
			}
			m.AddEQ(fmt.Sprintf("flow[%d][%s]", t, keys[v]), flow, 0)
		}

		act := milp.NewExpr()
		for i := 0; i < n; i++ {
			for _, j := range arcs.Out(i) {
				act.Add(vars.Arc[arcKey{t, i, j}])
			}
		}
		act.Term(vars.Used[t], -float64(2*n))
		m.AddLE(fmt.Sprintf("activation[%d]", t), act, 0)

		for k, j := range dels {
			link := milp.NewExpr().Add(vars.Visit[t][k])
			for _, i := range arcs.In(j) {
				link.Sub(vars.Arc[arcKey{t, i, j}])
			}
			m.AddEQ(fmt.Sprintf("visit_link[%d][%s]", t, keys[j]), link, 0)
		}

		cap := milp.NewExpr()
		if opts.SplitDeliveries {
			for k := range dels {
				cap.Add(vars.Load[t][k])
			}
		} else {
			for k, j := range dels {
				if inst.Demands[j] != 0 {
					cap.Term(vars.Visit[t][k], float64(inst.Demands[j]))
				}
			}
		}
		cap.Term(vars.Used[t], -float64(inst.Fleet.CapacityKg))
		m.AddLE(fmt.Sprintf("capacity[%d]", t), cap, 0)

		if opts.SplitDeliveries {
			for k, j := range dels {
				if inst.Demands[j] == 0 {
					continue
				}
				link := milp.NewExpr().Add(vars.Load[t][k]).Term(vars.Visit[t][k], -float64(inst.Demands[j]))
				m.AddLE(fmt.Sprintf("load_link[%d][%s]", t, keys[j]), link, 0)
			}
		}

		// MTZ subtour elimination over delivery-to-delivery arcs.
		for _, i := range dels {
			for _, j := range dels {
				if i == j || !arcs.Has(i, j) {
					continue
				}
				ki, kj := vars.pos[i], vars.pos[j]
				row := milp.NewExpr().
					Add(vars.Order[t][ki]).
					Sub(vars.Order[t][kj]).
					Term(vars.Arc[arcKey{t, i, j}], float64(nd))
				m.AddLE(fmt.Sprintf("mtz[%d][%s][%s]", t, keys[i], keys[j]), row, float64(nd-1))
			}
		}
	}

	for k, j := range dels {
		cover := milp.NewExpr()
		for t := 0; t < T; t++ {
			cover.Add(vars.Visit[t][k])
		}
		if opts.SplitDeliveries {
			m.AddGE(fmt.Sprintf("cover[%s]", keys[j]), cover, 1)
		} else {
			m.AddEQ(fmt.Sprintf("cover[%s]", keys[j]), cover, 1)
		}
	}
	if opts.SplitDeliveries {
		for k, j := range dels {
			supply := milp.NewExpr()
			for t := 0; t < T; t++ {
				supply.Add(vars.Load[t][k])
			}
			m.AddEQ(fmt.Sprintf("supply[%s]", keys[j]), supply, float64(inst.Demands[j]))
		}
	}

	// Identical vehicles: force used ones to the front of the fleet.
	for t := 0; t+1 < T; t++ {
		m.AddGE(fmt.Sprintf("symmetry[%d]", t), milp.NewExpr().Add(vars.Used[t]).Sub(vars.Used[t+1]), 0)
	}

	return m, vars
}
