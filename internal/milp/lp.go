package milp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

const termsPerLine = 6

func coefString(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

// writeTerms renders a linear expression in LP syntax, wrapping long rows.
func writeTerms(w *bufio.Writer, m *Model, terms []Term) {
	for i, t := range terms {
		name := m.Vars[t.Var].Name
		c := t.Coef
		switch {
		case i == 0 && c == 1:
			fmt.Fprintf(w, "%s", name)
		case i == 0 && c == -1:
			fmt.Fprintf(w, "- %s", name)
		case i == 0:
			fmt.Fprintf(w, "%s %s", coefString(c), name)
		case c == 1:
			fmt.Fprintf(w, " + %s", name)
		case c == -1:
			fmt.Fprintf(w, " - %s", name)
		case c < 0:
			fmt.Fprintf(w, " - %s %s", coefString(-c), name)
		default:
			fmt.Fprintf(w, " + %s %s", coefString(c), name)
		}
		if (i+1)%termsPerLine == 0 && i+1 < len(terms) {
			fmt.Fprintf(w, "\n   ")
		}
	}
}

// WriteLP dumps the model in CPLEX LP text format. Output is deterministic:
// variables and rows appear in insertion order.
func WriteLP(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ Model %s\n", m.Name)
	fmt.Fprintf(bw, "Minimize\n obj: ")
	var objTerms []Term
	for i, v := range m.Vars {
		if v.Obj != 0 {
			objTerms = append(objTerms, Term{Var: Var(i), Coef: v.Obj})
		}
	}
	if len(objTerms) == 0 && len(m.Vars) > 0 {
		objTerms = []Term{{Var: 0, Coef: 0}}
	}
	writeTerms(bw, m, objTerms)
	fmt.Fprintf(bw, "\nSubject To\n")
	for _, c := range m.Cons {
		fmt.Fprintf(bw, " %s: ", c.Name)
		writeTerms(bw, m, c.Terms)
		fmt.Fprintf(bw, " %s %s\n", c.Sense, coefString(c.RHS))
	}
	fmt.Fprintf(bw, "Bounds\n")
	for _, v := range m.Vars {
		if v.Kind == Binary {
			continue
		}
		fmt.Fprintf(bw, " %s <= %s <= %s\n", coefString(v.Lo), v.Name, coefString(v.Hi))
	}
	writeKindSection(bw, m, Binary, "Binaries")
	writeKindSection(bw, m, Integer, "Generals")
	fmt.Fprintf(bw, "End\n")
	return bw.Flush()
}

func writeKindSection(w *bufio.Writer, m *Model, kind VarKind, header string) {
	count := 0
	for _, v := range m.Vars {
		if v.Kind != kind {
			continue
		}
		if count == 0 {
			fmt.Fprintf(w, "%s\n ", header)
		} else if count%termsPerLine == 0 {
			fmt.Fprintf(w, "\n ")
		} else {
			fmt.Fprintf(w, " ")
		}
		fmt.Fprintf(w, "%s", v.Name)
		count++
	}
	if count > 0 {
		fmt.Fprintf(w, "\n")
	}
}

// WriteSolution dumps a variable assignment, one name/value pair per line,
// in the model's variable order.
func WriteSolution(w io.Writer, m *Model, sol *Solution) error {
	if sol.Values == nil {
		return fmt.Errorf("milp: solution with status %s has no assignment", sol.Status)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Solution for model %s\n", m.Name)
	fmt.Fprintf(bw, "# Objective value = %s\n", coefString(sol.Objective))
	for i, v := range m.Vars {
		fmt.Fprintf(bw, "%s %s\n", v.Name, coefString(sol.Values[i]))
	}
	return bw.Flush()
}

// WriteConflict dumps the rows of the named groups, LP style, as an
// irreducible infeasible subsystem report.
func WriteConflict(w io.Writer, m *Model, groups []string) error {
	want := make(map[string]bool, len(groups))
	for _, g := range groups {
		want[g] = true
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ Conflicting constraint groups for model %s\n", m.Name)
	for _, g := range groups {
		fmt.Fprintf(bw, "\\ group %s\n", g)
	}
	fmt.Fprintf(bw, "Subject To\n")
	for _, c := range m.Cons {
		if !want[c.Group()] {
			continue
		}
		fmt.Fprintf(bw, " %s: ", c.Name)
		writeTerms(bw, m, c.Terms)
		fmt.Fprintf(bw, " %s %s\n", c.Sense, coefString(c.RHS))
	}
	fmt.Fprintf(bw, "End\n")
	return bw.Flush()
}
