// Package cpsat adapts the or-tools CP-SAT solver to the milp.Engine
// contract. CP-SAT works over integers, so every constraint row and the
// objective are scaled by a power of ten until their coefficients are
// integral; variables declared continuous are lowered to integer ranges,
// which is exact for the kilogram-valued quantities the planner emits.
package cpsat

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"
	"google.golang.org/protobuf/proto"

	"borderfleet/internal/milp"
)

const (
	maxScale   = 1e6
	scaleEps   = 1e-6
	boundClamp = 1e9
)

// Engine solves milp models with CP-SAT.
type Engine struct {
	Log *log.Logger
}

// New returns a ready engine.
func New() *Engine { return &Engine{} }

func (e *Engine) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}

// rowScale picks the smallest power of ten that makes every value integral,
// capped at maxScale with rounding beyond that.
func rowScale(values []float64) float64 {
	scale := 1.0
	for scale < maxScale {
		ok := true
		for _, v := range values {
			s := v * scale
			if math.Abs(s-math.Round(s)) > scaleEps {
				ok = false
				break
			}
		}
		if ok {
			return scale
		}
		scale *= 10
	}
	return maxScale
}

func lowerBound(v float64) int64 {
	if v < -boundClamp {
		v = -boundClamp
	}
	return int64(math.Ceil(v - scaleEps))
}

func upperBound(v float64) int64 {
	if v > boundClamp {
		v = boundClamp
	}
	return int64(math.Floor(v + scaleEps))
}

// build lowers m into a CP-SAT builder. Constraints whose group is rejected
// by keep are skipped; a nil keep admits everything.
func build(m *milp.Model, keep func(group string) bool) (*cpmodel.Builder, []cpmodel.IntVar) {
	b := cpmodel.NewCpModelBuilder()
	vars := make([]cpmodel.IntVar, len(m.Vars))
	for i, vd := range m.Vars {
		vars[i] = b.NewIntVar(lowerBound(vd.Lo), upperBound(vd.Hi))
	}
	for _, c := range m.Cons {
		if keep != nil && !keep(c.Group()) {
			continue
		}
		values := make([]float64, 0, len(c.Terms)+1)
		for _, t := range c.Terms {
			values = append(values, t.Coef)
		}
		values = append(values, c.RHS)
		scale := rowScale(values)
		expr := cpmodel.NewLinearExpr()
		for _, t := range c.Terms {
			expr.AddTerm(vars[t.Var], int64(math.Round(t.Coef*scale)))
		}
		rhs := cpmodel.NewConstant(int64(math.Round(c.RHS * scale)))
		switch c.Sense {
		case milp.LE:
			b.AddLessOrEqual(expr, rhs)
		case milp.GE:
			b.AddGreaterOrEqual(expr, rhs)
		default:
			b.AddEquality(expr, rhs)
		}
	}
	return b, vars
}

// objective attaches the minimization target and returns its scale.
func objective(b *cpmodel.Builder, m *milp.Model, vars []cpmodel.IntVar) float64 {
	var coefs []float64
	for _, vd := range m.Vars {
		if vd.Obj != 0 {
			coefs = append(coefs, vd.Obj)
		}
	}
	if len(coefs) == 0 {
		return 1
	}
	scale := rowScale(coefs)
	obj := cpmodel.NewLinearExpr()
	for i, vd := range m.Vars {
		if vd.Obj != 0 {
			obj.AddTerm(vars[i], int64(math.Round(vd.Obj*scale)))
		}
	}
	b.Minimize(obj)
	return scale
}

func satParams(ctx context.Context, p milp.Params) *sppb.SatParameters {
	params := &sppb.SatParameters{}
	limit := p.TimeLimit
	if dl, ok := ctx.Deadline(); ok {
		remain := time.Until(dl)
		if limit <= 0 || remain < limit {
			limit = remain
		}
	}
	if limit > 0 {
		params.MaxTimeInSeconds = proto.Float64(limit.Seconds())
	}
	if p.RelativeGap > 0 {
		params.RelativeGapLimit = proto.Float64(p.RelativeGap)
	}
	if p.Symmetry >= 0 {
		level := int32(p.Symmetry)
		if level > 4 {
			level = 4
		}
		params.SymmetryLevel = proto.Int32(level)
	}
	if p.Presolve == 0 {
		params.CpModelPresolve = proto.Bool(false)
	}
	if p.Cuts == 0 {
		params.CutLevel = proto.Int32(0)
	}
	if p.Workers > 0 {
		params.NumWorkers = proto.Int32(int32(p.Workers))
	}
	switch p.Emphasis {
	case milp.EmphasisFeasibility:
		params.SearchBranching = sppb.SatParameters_PORTFOLIO_SEARCH.Enum()
	case milp.EmphasisBound:
		params.SearchBranching = sppb.SatParameters_LP_SEARCH.Enum()
	}
	if p.LogProgress {
		params.LogSearchProgress = proto.Bool(true)
	}
	return params
}

// Solve implements milp.Engine.
func (e *Engine) Solve(ctx context.Context, m *milp.Model, p milp.Params) (*milp.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	b, vars := build(m, nil)
	objScale := objective(b, m, vars)

	mdl, err := b.Model()
	if err != nil {
		return nil, fmt.Errorf("cpsat: build model: %w", err)
	}
	e.logf("cpsat: solving %s", m.Stats())
	resp, err := cpmodel.SolveCpModelWithParameters(mdl, satParams(ctx, p))
	if err != nil {
		return nil, fmt.Errorf("cpsat: solve: %w", err)
	}

	sol := &milp.Solution{Wall: time.Since(start)}
	switch resp.GetStatus() {
	case cmpb.CpSolverStatus_OPTIMAL:
		sol.Status = milp.StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		sol.Status = milp.StatusTimeLimit
	case cmpb.CpSolverStatus_INFEASIBLE:
		sol.Status = milp.StatusInfeasible
	default:
		sol.Status = milp.StatusUnsolved
	}
	if sol.Status == milp.StatusOptimal || sol.Status == milp.StatusTimeLimit {
		sol.Objective = resp.GetObjectiveValue() / objScale
		sol.Bound = resp.GetBestObjectiveBound() / objScale
		if abs := math.Abs(sol.Objective); abs > scaleEps {
			sol.Gap = math.Abs(sol.Objective-sol.Bound) / abs
		}
		sol.Values = make([]float64, len(vars))
		for i := range vars {
			sol.Values[i] = float64(cpmodel.SolutionIntegerValue(resp, vars[i]))
		}
	}
	e.logf("cpsat: status=%s objective=%.2f gap=%.4f wall=%s", sol.Status, sol.Objective, sol.Gap, sol.Wall)
	return sol, nil
}
