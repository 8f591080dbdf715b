// Package milp defines a small mixed-integer linear program representation
// plus the engine contract the planner solves against. Model construction is
// deterministic: variables and constraints keep insertion order, and names
// are stable across runs so LP and solution dumps diff cleanly.
package milp

import (
	"fmt"
	"strings"
)

// VarKind classifies a decision variable.
type VarKind int

const (
	Binary VarKind = iota
	Integer
	Continuous
)

// Var is an opaque handle into a Model's variable table.
type Var int

// VarDef holds one variable's definition.
type VarDef struct {
	Name string
	Kind VarKind
	Lo   float64
	Hi   float64
	Obj  float64
}

// Sense is a linear constraint comparison.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Term is one coefficient*variable entry of a linear expression.
type Term struct {
	Var  Var
	Coef float64
}

// Constraint is a named linear row. The group, the name prefix before the
// first bracket, identifies the family the row belongs to for infeasibility
// reporting.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Group returns the constraint's family name.
func (c Constraint) Group() string { return GroupOf(c.Name) }

// GroupOf cuts a row or variable name at its first index bracket.
func GroupOf(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

// Model is a minimization MILP under construction.
type Model struct {
	Name string
	Vars []VarDef
	Cons []Constraint

	byName map[string]Var
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, byName: make(map[string]Var)}
}

func (m *Model) addVar(d VarDef) Var {
	if _, dup := m.byName[d.Name]; dup {
		panic("milp: duplicate variable name " + d.Name)
	}
	v := Var(len(m.Vars))
	m.Vars = append(m.Vars, d)
	m.byName[d.Name] = v
	return v
}

// AddBinary adds a 0/1 variable with the given objective coefficient.
func (m *Model) AddBinary(name string, obj float64) Var {
	return m.addVar(VarDef{Name: name, Kind: Binary, Lo: 0, Hi: 1, Obj: obj})
}

// AddInteger adds an integer variable on [lo, hi].
func (m *Model) AddInteger(name string, lo, hi, obj float64) Var {
	return m.addVar(VarDef{Name: name, Kind: Integer, Lo: lo, Hi: hi, Obj: obj})
}

// AddContinuous adds a continuous variable on [lo, hi].
func (m *Model) AddContinuous(name string, lo, hi, obj float64) Var {
	return m.addVar(VarDef{Name: name, Kind: Continuous, Lo: lo, Hi: hi, Obj: obj})
}

// VarByName resolves a variable handle by its exact name.
func (m *Model) VarByName(name string) (Var, bool) {
	v, ok := m.byName[name]
	return v, ok
}

// Def returns the definition behind a handle.
func (m *Model) Def(v Var) VarDef { return m.Vars[v] }

// NumVars returns the variable count.
func (m *Model) NumVars() int { return len(m.Vars) }

// NumCons returns the constraint count.
func (m *Model) NumCons() int { return len(m.Cons) }

// Expr accumulates terms for one constraint row.
type Expr struct {
	terms []Term
}

// NewExpr returns an empty linear expression.
func NewExpr() *Expr { return &Expr{} }

// Term appends coef*v and returns the expression for chaining.
func (e *Expr) Term(v Var, coef float64) *Expr {
	e.terms = append(e.terms, Term{Var: v, Coef: coef})
	return e
}

// Add appends v with coefficient 1.
func (e *Expr) Add(v Var) *Expr { return e.Term(v, 1) }

// Sub appends v with coefficient -1.
func (e *Expr) Sub(v Var) *Expr { return e.Term(v, -1) }

func (m *Model) addCons(name string, e *Expr, sense Sense, rhs float64) {
	if len(e.terms) == 0 {
		panic("milp: empty constraint " + name)
	}
	terms := make([]Term, len(e.terms))
	copy(terms, e.terms)
	m.Cons = append(m.Cons, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

// AddLE adds the row e <= rhs.
func (m *Model) AddLE(name string, e *Expr, rhs float64) { m.addCons(name, e, LE, rhs) }

// AddGE adds the row e >= rhs.
func (m *Model) AddGE(name string, e *Expr, rhs float64) { m.addCons(name, e, GE, rhs) }

// AddEQ adds the row e = rhs.
func (m *Model) AddEQ(name string, e *Expr, rhs float64) { m.addCons(name, e, EQ, rhs) }

// Groups returns the distinct constraint groups in first-appearance order.
func (m *Model) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range m.Cons {
		g := c.Group()
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// Stats returns a short size summary for logs.
func (m *Model) Stats() string {
	bin, gen, cont := 0, 0, 0
	for _, v := range m.Vars {
		switch v.Kind {
		case Binary:
			bin++
		case Integer:
			gen++
		default:
			cont++
		}
	}
	return fmt.Sprintf("%d vars (%d bin, %d int, %d cont), %d constraints", len(m.Vars), bin, gen, cont, len(m.Cons))
}
