package milp

import (
	"strings"
	"testing"
)

func demoModel() *Model {
	m := NewModel("truckplan")
	x := m.AddBinary("arc[0][istanbul][kapikule]", 76.16)
	u := m.AddBinary("used[0]", 2700)
	o := m.AddInteger("order[0][lille]", 1, 11, 0)
	m.AddEQ("origin_out[0]", NewExpr().Add(x).Sub(u), 0)
	m.AddLE("capacity[0]", NewExpr().Term(o, 500), 23000)
	return m
}

func TestWriteLP(t *testing.T) {
	var sb strings.Builder
	if err := WriteLP(&sb, demoModel()); err != nil {
		t.Fatalf("WriteLP: %v", err)
	}
	got := sb.String()
	want := `\ Model truckplan
Minimize
 obj: 76.16 arc[0][istanbul][kapikule] + 2700 used[0]
Subject To
 origin_out[0]: arc[0][istanbul][kapikule] - used[0] = 0
 capacity[0]: 500 order[0][lille] <= 23000
Bounds
 1 <= order[0][lille] <= 11
Binaries
 arc[0][istanbul][kapikule] used[0]
Generals
 order[0][lille]
End
`
	if got != want {
		t.Fatalf("LP output:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteLPDeterministic(t *testing.T) {
	var a, b strings.Builder
	_ = WriteLP(&a, demoModel())
	_ = WriteLP(&b, demoModel())
	if a.String() != b.String() {
		t.Fatal("two dumps of the same model differ")
	}
}

func TestWriteSolution(t *testing.T) {
	m := demoModel()
	sol := &Solution{Status: StatusOptimal, Objective: 2776.16, Values: []float64{1, 1, 3}}
	var sb strings.Builder
	if err := WriteSolution(&sb, m, sol); err != nil {
		t.Fatalf("WriteSolution: %v", err)
	}
	got := sb.String()
	for _, line := range []string{
		"# Objective value = 2776.16",
		"arc[0][istanbul][kapikule] 1",
		"used[0] 1",
		"order[0][lille] 3",
	} {
		if !strings.Contains(got, line) {
			t.Fatalf("missing %q in:\n%s", line, got)
		}
	}
}

func TestWriteSolutionWithoutAssignment(t *testing.T) {
	m := demoModel()
	sol := &Solution{Status: StatusInfeasible}
	if err := WriteSolution(&strings.Builder{}, m, sol); err == nil {
		t.Fatal("nil assignment accepted")
	}
}

func TestWriteConflict(t *testing.T) {
	m := demoModel()
	var sb strings.Builder
	if err := WriteConflict(&sb, m, []string{"capacity"}); err != nil {
		t.Fatalf("WriteConflict: %v", err)
	}
	got := sb.String()
	if !strings.Contains(got, "capacity[0]: 500 order[0][lille] <= 23000") {
		t.Fatalf("conflict dump missing row:\n%s", got)
	}
	if strings.Contains(got, "origin_out[0]:") {
		t.Fatalf("conflict dump includes unrelated row:\n%s", got)
	}
}
