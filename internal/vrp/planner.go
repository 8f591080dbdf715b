package vrp

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"borderfleet/internal/milp"
)

// Artifacts configures solver dump files for a run. Zero value writes
// nothing.
type Artifacts struct {
	Dir               string
	Base              string
	WriteLP           bool
	WriteSol          bool
	ExplainInfeasible bool
}

// Planner runs the full pipeline: prechecks, arc generation, model build,
// solve, route extraction, report.
type Planner struct {
	Engine milp.Engine
	Log    *log.Logger
	// Progress, when set, receives stage transitions: building, solving,
	// completed.
	Progress  func(stage string, data map[string]any)
	Artifacts Artifacts
}

// Result is a finished (or diagnosed) run. On EngineInfeasibleError and
// EngineTimeLimitError the result still carries model statistics and any
// artifact paths written before the failure.
type Result struct {
	Report    Report
	Routes    []Route
	Status    milp.Status
	Objective float64
	Gap       float64
	ModelVars int
	ModelCons int
	Warnings  []string
	LPPath    string
	SolPath   string
	IISPath   string
}

func (p *Planner) logf(format string, args ...any) {
	if p.Log != nil {
		p.Log.Printf(format, args...)
	}
}

func (p *Planner) progress(stage string, data map[string]any) {
	if p.Progress != nil {
		p.Progress(stage, data)
	}
}

func (p *Planner) artifactPath(ext string) string {
	base := p.Artifacts.Base
	if base == "" {
		base = "truckplan"
	}
	return filepath.Join(p.Artifacts.Dir, base+ext)
}

// writeArtifact is best-effort: a failed dump degrades to a warning rather
// than failing the run.
func writeArtifact(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Plan solves one instance end to end.
func (p *Planner) Plan(ctx context.Context, inst Instance, opts Options, params milp.Params) (*Result, error) {
	warnings, err := CheckDemands(inst, opts)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		p.logf("vrp: %s", w)
	}

	p.progress("building", map[string]any{"locations": inst.Topo.Len(), "vehicles": inst.Fleet.Vehicles})
	arcs := BuildArcs(inst.Topo, inst.Seq)
	mdl, vars := Build(inst, arcs, opts)
	p.logf("vrp: built %s over %d arcs", mdl.Stats(), arcs.Len())

	res := &Result{
		ModelVars: mdl.NumVars(),
		ModelCons: mdl.NumCons(),
		Warnings:  warnings,
	}

	if p.Artifacts.WriteLP && p.Artifacts.Dir != "" {
		path := p.artifactPath(".lp")
		if err := writeArtifact(path, func(w io.Writer) error { return milp.WriteLP(w, mdl) }); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("write lp artifact: %v", err))
		} else {
			res.LPPath = path
		}
	}

	p.progress("solving", map[string]any{"variables": res.ModelVars, "constraints": res.ModelCons})
	sol, err := p.Engine.Solve(ctx, mdl, params)
	if err != nil {
		return nil, fmt.Errorf("vrp: engine: %w", err)
	}
	res.Status = sol.Status
	res.Objective = sol.Objective
	res.Gap = sol.Gap

	switch sol.Status {
	case milp.StatusInfeasible:
		infeasible := &EngineInfeasibleError{}
		if p.Artifacts.ExplainInfeasible {
			if ex, ok := p.Engine.(milp.Explainer); ok {
				groups, err := ex.Explain(ctx, mdl, params)
				if err != nil {
					p.logf("vrp: infeasibility explain failed: %v", err)
				} else {
					infeasible.Groups = groups
					if p.Artifacts.Dir != "" {
						path := p.artifactPath(".iis")
						if err := writeArtifact(path, func(w io.Writer) error { return milp.WriteConflict(w, mdl, groups) }); err != nil {
							res.Warnings = append(res.Warnings, fmt.Sprintf("write iis artifact: %v", err))
						} else {
							res.IISPath = path
						}
					}
				}
			}
		}
		return res, infeasible
	case milp.StatusUnsolved:
		return res, &EngineTimeLimitError{Limit: params.TimeLimit}
	}

	routes, err := Extract(inst, arcs, vars, sol)
	if err != nil {
		return res, err
	}
	res.Routes = routes
	res.Report = BuildReport(inst, routes, sol, res.Warnings)

	if p.Artifacts.WriteSol && p.Artifacts.Dir != "" {
		path := p.artifactPath(".sol")
		if err := writeArtifact(path, func(w io.Writer) error { return milp.WriteSolution(w, mdl, sol) }); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("write sol artifact: %v", err))
			res.Report.Warnings = res.Warnings
		} else {
			res.SolPath = path
		}
	}

	p.progress("completed", map[string]any{
		"status":       sol.Status.String(),
		"objective":    sol.Objective,
		"vehiclesUsed": res.Report.VehiclesUsed,
	})
	return res, nil
}
