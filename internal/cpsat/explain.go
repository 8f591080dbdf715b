package cpsat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"

	"borderfleet/internal/milp"
)

const probeTimeLimit = 10 * time.Second

// Explain narrows an infeasible model to a conflicting set of constraint
// groups with a deletion filter: drop one group at a time, re-solve a
// feasibility probe, and discard the group for good when infeasibility
// persists without it. Probes that time out keep the group under test.
func (e *Engine) Explain(ctx context.Context, m *milp.Model, p milp.Params) ([]string, error) {
	groups := m.Groups()
	if len(groups) == 0 {
		return nil, fmt.Errorf("cpsat: model has no constraints to explain")
	}

	active := make(map[string]bool, len(groups))
	for _, g := range groups {
		active[g] = true
	}

	probe := p
	if probe.TimeLimit <= 0 || probe.TimeLimit > probeTimeLimit {
		probe.TimeLimit = probeTimeLimit
	}

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		active[g] = false
		st, err := e.probe(ctx, m, probe, active)
		if err != nil {
			return nil, err
		}
		if st != cmpb.CpSolverStatus_INFEASIBLE {
			// g is load-bearing for the conflict.
			active[g] = true
		}
		e.logf("cpsat: explain probe without %s: %s", g, st)
	}

	var out []string
	for _, g := range groups {
		if active[g] {
			out = append(out, g)
		}
	}
	return out, nil
}

// probe solves the model restricted to the kept groups, without objective.
func (e *Engine) probe(ctx context.Context, m *milp.Model, p milp.Params, keep map[string]bool) (cmpb.CpSolverStatus, error) {
	b, _ := build(m, func(group string) bool { return keep[group] })
	mdl, err := b.Model()
	if err != nil {
		return cmpb.CpSolverStatus_UNKNOWN, fmt.Errorf("cpsat: build probe: %w", err)
	}
	resp, err := cpmodel.SolveCpModelWithParameters(mdl, satParams(ctx, p))
	if err != nil {
		return cmpb.CpSolverStatus_UNKNOWN, fmt.Errorf("cpsat: probe solve: %w", err)
	}
	return resp.GetStatus(), nil
}
