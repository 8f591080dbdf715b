package vrp

import (
	"bytes"
	"testing"

	"borderfleet/internal/milp"
)

func findCons(t *testing.T, m *milp.Model, name string) milp.Constraint {
	t.Helper()
	for _, c := range m.Cons {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no constraint named %q", name)
	return milp.Constraint{}
}

func hasCons(m *milp.Model, name string) bool {
	for _, c := range m.Cons {
		if c.Name == name {
			return true
		}
	}
	return false
}

func coefOf(t *testing.T, m *milp.Model, c milp.Constraint, varName string) float64 {
	t.Helper()
	v, ok := m.VarByName(varName)
	if !ok {
		t.Fatalf("no variable named %q", varName)
	}
	for _, term := range c.Terms {
		if term.Var == v {
			return term.Coef
		}
	}
	t.Fatalf("constraint %q has no term for %q", c.Name, varName)
	return 0
}

func TestBuildCounts(t *testing.T) {
	fleet := Fleet{Vehicles: 2, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}
	inst, arcs := corridorInstance(t, fleet, nil)

	m, _ := Build(inst, arcs, Options{})
	// Per vehicle: used + 9 arcs + 2 visits + 2 orders.
	if got, want := m.NumVars(), 2*(1+9+2+2); got != want {
		t.Fatalf("vars = %d, want %d", got, want)
	}
	// Per vehicle: 6 corridor rows, 4 flow rows, activation, 2 visit links,
	// capacity, 2 MTZ rows. Across the fleet: 2 cover rows, 1 symmetry row.
	if got, want := m.NumCons(), 2*16+3; got != want {
		t.Fatalf("cons = %d, want %d", got, want)
	}

	ms, _ := Build(inst, arcs, Options{SplitDeliveries: true})
	if got, want := ms.NumVars(), 2*(1+9+2+2+2); got != want {
		t.Fatalf("split vars = %d, want %d", got, want)
	}
	// Split adds 2 load links per vehicle and 2 supply rows.
	if got, want := ms.NumCons(), 2*18+5; got != want {
		t.Fatalf("split cons = %d, want %d", got, want)
	}
}

func TestBuildObjectiveCoefficients(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 1, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}, nil)
	m, _ := Build(inst, arcs, Options{})

	v, ok := m.VarByName("used[0]")
	if !ok {
		t.Fatal("used[0] missing")
	}
	if m.Def(v).Obj != 2700 {
		t.Fatalf("used obj = %v", m.Def(v).Obj)
	}
	a, ok := m.VarByName("arc[0][istanbul][kapıkule]")
	if !ok {
		t.Fatal("corridor arc missing")
	}
	if got := m.Def(a).Obj; !near(got, 0.32*200) {
		t.Fatalf("arc obj = %v", got)
	}
	o, ok := m.VarByName("order[0][lille]")
	if !ok {
		t.Fatal("order var missing")
	}
	def := m.Def(o)
	if def.Obj != 0 || def.Lo != 1 || def.Hi != 2 {
		t.Fatalf("order def = %+v", def)
	}
}

func TestBuildCorridorChainRows(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 1, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}, nil)
	m, _ := Build(inst, arcs, Options{})

	out := findCons(t, m, "origin_out[0]")
	if out.Sense != milp.EQ || out.RHS != 0 || len(out.Terms) != 2 {
		t.Fatalf("origin_out: %+v", out)
	}
	if coefOf(t, m, out, "arc[0][istanbul][kapıkule]") != 1 || coefOf(t, m, out, "used[0]") != -1 {
		t.Fatalf("origin_out terms: %+v", out.Terms)
	}
	in := findCons(t, m, "entry_in[0]")
	if coefOf(t, m, in, "arc[0][kapıkule][strasbourg]") != 1 {
		t.Fatalf("entry_in terms: %+v", in.Terms)
	}
	// Every origin inbound arc counts toward the return row.
	ret := findCons(t, m, "origin_in[0]")
	if len(ret.Terms) != 4 {
		t.Fatalf("origin_in term count = %d", len(ret.Terms))
	}
}

func TestBuildActivationRow(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 1, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}, nil)
	m, _ := Build(inst, arcs, Options{})

	act := findCons(t, m, "activation[0]")
	if act.Sense != milp.LE || act.RHS != 0 {
		t.Fatalf("activation row: %+v", act)
	}
	if len(act.Terms) != arcs.Len()+1 {
		t.Fatalf("activation terms = %d, want %d", len(act.Terms), arcs.Len()+1)
	}
	if coefOf(t, m, act, "used[0]") != -10 {
		t.Fatalf("activation used coef: %+v", act.Terms)
	}
}

func TestBuildCapacityRow(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 1, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}, nil)
	m, _ := Build(inst, arcs, Options{})

	cap := findCons(t, m, "capacity[0]")
	if cap.Sense != milp.LE || cap.RHS != 0 {
		t.Fatalf("capacity row: %+v", cap)
	}
	if coefOf(t, m, cap, "visit[0][lille]") != 600 || coefOf(t, m, cap, "visit[0][rouen]") != 400 {
		t.Fatalf("capacity demand coefs: %+v", cap.Terms)
	}
	if coefOf(t, m, cap, "used[0]") != -23000 {
		t.Fatalf("capacity used coef: %+v", cap.Terms)
	}
}

func TestBuildMTZRows(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 1, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}, nil)
	m, _ := Build(inst, arcs, Options{})

	row := findCons(t, m, "mtz[0][lille][rouen]")
	if row.Sense != milp.LE || row.RHS != 1 {
		t.Fatalf("mtz row: %+v", row)
	}
	if coefOf(t, m, row, "order[0][lille]") != 1 || coefOf(t, m, row, "order[0][rouen]") != -1 {
		t.Fatalf("mtz order coefs: %+v", row.Terms)
	}
	if coefOf(t, m, row, "arc[0][lille][rouen]") != 2 {
		t.Fatalf("mtz arc coef: %+v", row.Terms)
	}
	if !hasCons(m, "mtz[0][rouen][lille]") {
		t.Fatal("reverse delivery pair missing")
	}
	// Transit nodes never get ordering rows.
	if hasCons(m, "mtz[0][strasbourg][lille]") {
		t.Fatal("mtz row over a transit node")
	}
}

func TestBuildCoverRows(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 2, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32},
		map[string]int64{"Lille": 600})
	m, _ := Build(inst, arcs, Options{})

	cover := findCons(t, m, "cover[rouen]")
	if cover.Sense != milp.EQ || cover.RHS != 1 || len(cover.Terms) != 2 {
		t.Fatalf("cover row: %+v", cover)
	}

	ms, _ := Build(inst, arcs, Options{SplitDeliveries: true})
	split := findCons(t, ms, "cover[rouen]")
	if split.Sense != milp.GE || split.RHS != 1 {
		t.Fatalf("split cover row: %+v", split)
	}
	supply := findCons(t, ms, "supply[lille]")
	if supply.Sense != milp.EQ || supply.RHS != 600 || len(supply.Terms) != 2 {
		t.Fatalf("supply row: %+v", supply)
	}
}

func TestBuildSplitLoadVariables(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 1, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32},
		map[string]int64{"Lille": 600})
	m, _ := Build(inst, arcs, Options{SplitDeliveries: true})

	v, ok := m.VarByName("load[0][lille]")
	if !ok {
		t.Fatal("load variable missing")
	}
	if def := m.Def(v); def.Lo != 0 || def.Hi != 600 {
		t.Fatalf("load bounds: %+v", def)
	}
	z, ok := m.VarByName("load[0][rouen]")
	if !ok {
		t.Fatal("zero-demand load variable missing")
	}
	if def := m.Def(z); def.Hi != 0 {
		t.Fatalf("zero-demand load bound: %+v", def)
	}
	if !hasCons(m, "load_link[0][lille]") {
		t.Fatal("load link missing")
	}
	if hasCons(m, "load_link[0][rouen]") {
		t.Fatal("load link emitted for zero demand")
	}
}

func TestBuildSymmetryPrefix(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 3, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}, nil)
	m, _ := Build(inst, arcs, Options{})

	for _, name := range []string{"symmetry[0]", "symmetry[1]"} {
		row := findCons(t, m, name)
		if row.Sense != milp.GE || row.RHS != 0 || len(row.Terms) != 2 {
			t.Fatalf("%s: %+v", name, row)
		}
	}
	sym := findCons(t, m, "symmetry[1]")
	if coefOf(t, m, sym, "used[1]") != 1 || coefOf(t, m, sym, "used[2]") != -1 {
		t.Fatalf("symmetry terms: %+v", sym.Terms)
	}
	if hasCons(m, "symmetry[2]") {
		t.Fatal("symmetry row past the fleet tail")
	}
}

func TestBuildDeterministic(t *testing.T) {
	inst, arcs := corridorInstance(t, Fleet{Vehicles: 2, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32}, nil)

	var a, b bytes.Buffer
	m1, _ := Build(inst, arcs, Options{})
	m2, _ := Build(inst, arcs, Options{})
	if err := milp.WriteLP(&a, m1); err != nil {
		t.Fatalf("WriteLP: %v", err)
	}
	if err := milp.WriteLP(&b, m2); err != nil {
		t.Fatalf("WriteLP: %v", err)
	}
	if a.String() != b.String() {
		t.Fatal("two builds of the same instance emit different models")
	}
}
