package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"borderfleet/internal/demand"
	"borderfleet/internal/metrics"
	"borderfleet/internal/milp"
	"borderfleet/internal/model"
	"borderfleet/internal/store"
	"borderfleet/internal/vrp"
)

// PlansHandler handles POST/GET /v1/plans.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		pr := s.getPrincipal(r)
		if !(pr.IsAdmin() || pr.Role == "dispatcher") {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		if s.Cfg.Server.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.Cfg.Server.MaxBodyBytes)
		}
		var req model.PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			req.TenantID = pr.Tenant
		}
		if err := validatePlanRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
			return
		}
		// Resolve names against the matrix up front so a typo fails the
		// request instead of a persisted plan.
		demands := demand.Merge(s.demands, req.Demands)
		inst, err := vrp.NewInstance(s.topo, s.seq, demands, s.fleetFor(req))
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
			return
		}
		select {
		case s.solveSem <- struct{}{}:
			defer func() { <-s.solveSem }()
		case <-r.Context().Done():
			writeProblem(w, http.StatusServiceUnavailable, "Solver busy", "no solve slot became available", r.URL.Path)
			return
		}
		plan, err := s.Store.CreatePlan(r.Context(), model.Plan{TenantID: req.TenantID, Status: model.PlanStatusSolving, Request: req})
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create plan failed", err.Error(), r.URL.Path)
			return
		}
		s.notify(r.Context(), plan.TenantID, plan.ID, model.EventPlanCreated, map[string]any{"planId": plan.ID, "status": plan.Status})
		plan = s.runPlan(r.Context(), plan, inst, s.optionsFor(req), s.paramsFor(req))
		writeJSON(w, http.StatusCreated, plan)
	case http.MethodGet:
		pr := s.getPrincipal(r)
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListPlans(r.Context(), pr.Tenant, status, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PlanByIDHandler handles GET/DELETE /v1/plans/{id} plus the /report,
// /artifacts/{kind} and /events/stream subresources.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	pr := s.getPrincipal(r)

	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		plan, err := s.Store.GetPlan(r.Context(), pr.Tenant, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Plan not found", "", r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		ch := s.Broker.Subscribe(id)
		defer s.Broker.Unsubscribe(id, ch)
		writeEvent := func(evt SSEEvent) {
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		}
		heartbeat := func() {
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
		heartbeat()
		// Late subscribers to a finished plan still get its terminal event.
		if plan.Status != model.PlanStatusSolving {
			writeEvent(SSEEvent{Type: planEventType(plan.Status), Data: terminalEventData(plan)})
		}
		notify := r.Context().Done()
		for {
			select {
			case <-notify:
				return
			case evt := <-ch:
				writeEvent(evt)
			case <-time.After(15 * time.Second):
				heartbeat()
			}
		}
	}

	if len(parts) > 1 && parts[1] == "report" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		plan, err := s.Store.GetPlan(r.Context(), pr.Tenant, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Plan not found", "", r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(renderPlanReport(plan)))
		return
	}

	if len(parts) > 2 && parts[1] == "artifacts" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		plan, err := s.Store.GetPlan(r.Context(), pr.Tenant, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Plan not found", "", r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
			return
		}
		path := ""
		if plan.Result != nil && plan.Result.Artifacts != nil {
			switch parts[2] {
			case "lp":
				path = plan.Result.Artifacts.LP
			case "sol":
				path = plan.Result.Artifacts.Sol
			case "iis":
				path = plan.Result.Artifacts.IIS
			}
		}
		if path == "" {
			writeProblem(w, http.StatusNotFound, "Artifact not found", "", r.URL.Path)
			return
		}
		if _, err := os.Stat(path); err != nil {
			writeProblem(w, http.StatusNotFound, "Artifact not found", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		http.ServeFile(w, r, path)
		return
	}

	switch r.Method {
	case http.MethodGet:
		plan, err := s.Store.GetPlan(r.Context(), pr.Tenant, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Plan not found", "", r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	case http.MethodDelete:
		if !(pr.IsAdmin() || pr.Role == "dispatcher") {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		if err := s.Store.DeletePlan(r.Context(), pr.Tenant, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Plan not found", "", r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Delete plan failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// runPlan executes the solve and persists the outcome. Bookkeeping runs on
// a non-cancelable context so a dropped client cannot leave a plan stuck
// in solving.
func (s *Server) runPlan(ctx context.Context, plan model.Plan, inst vrp.Instance, opts vrp.Options, params milp.Params) model.Plan {
	bg := context.WithoutCancel(ctx)
	start := time.Now()
	planner := &vrp.Planner{
		Engine: s.Engine,
		Log:    s.Log,
		Progress: func(stage string, data map[string]any) {
			if stage != "solving" {
				return
			}
			d := map[string]any{"planId": plan.ID}
			for k, v := range data {
				d[k] = v
			}
			s.notify(bg, plan.TenantID, plan.ID, model.EventPlanSolving, d)
		},
	}
	if s.Cfg.Artifacts.Dir != "" {
		planner.Artifacts = s.Cfg.Artifacts.ArtifactSpec()
		planner.Artifacts.Base = plan.ID
	}
	res, err := planner.Plan(ctx, inst, opts, params)
	wall := time.Since(start)

	var (
		demandErr     *vrp.InfeasibleDemandError
		infeasibleErr *vrp.EngineInfeasibleError
	)
	switch {
	case err == nil:
		plan.Status = model.PlanStatusCompleted
	case errors.As(err, &demandErr), errors.As(err, &infeasibleErr):
		plan.Status = model.PlanStatusInfeasible
		plan.Error = err.Error()
	default:
		plan.Status = model.PlanStatusFailed
		plan.Error = err.Error()
	}
	// Failed and infeasible runs keep whatever the planner got far enough
	// to produce: model statistics and artifact paths.
	if res != nil {
		plan.Result = resultFromRun(res)
	}
	if uerr := s.Store.UpdatePlan(bg, plan); uerr != nil {
		s.logf("api: update plan %s: %v", plan.ID, uerr)
	}
	metrics.SolveRuns.WithLabelValues(plan.Status).Inc()
	metrics.SolveDuration.Observe(wall.Seconds())
	if res != nil {
		metrics.ModelVariables.Set(float64(res.ModelVars))
		metrics.ModelConstraints.Set(float64(res.ModelCons))
		m := model.PlanMetrics{
			PlanID:      plan.ID,
			TenantID:    plan.TenantID,
			Variables:   res.ModelVars,
			Constraints: res.ModelCons,
			SolveStatus: res.Status.String(),
			Objective:   res.Objective,
			Gap:         res.Gap,
			WallMs:      wall.Milliseconds(),
		}
		if merr := s.Store.SavePlanMetrics(bg, m); merr != nil {
			s.logf("api: save plan metrics %s: %v", plan.ID, merr)
		}
	}
	s.notify(bg, plan.TenantID, plan.ID, planEventType(plan.Status), terminalEventData(plan))
	return plan
}

// notify publishes to live stream subscribers and enqueues webhooks.
func (s *Server) notify(ctx context.Context, tenant, planID, eventType string, data map[string]any) {
	s.Broker.Publish(planID, SSEEvent{Type: eventType, Data: data})
	if s.Pub != nil {
		s.Pub.Emit(ctx, tenant, eventType, data)
	}
}

func (s *Server) fleetFor(req model.PlanRequest) vrp.Fleet {
	f := s.Cfg.Fleet.FleetSpec()
	if req.Vehicles > 0 {
		f.Vehicles = req.Vehicles
	}
	if req.CapacityKg > 0 {
		f.CapacityKg = req.CapacityKg
	}
	if req.FixedCost != nil {
		f.FixedCost = *req.FixedCost
	}
	if req.KmCost != nil {
		f.KmCost = *req.KmCost
	}
	return f
}

func (s *Server) paramsFor(req model.PlanRequest) milp.Params {
	p := s.Cfg.Solver.EngineParams()
	if req.TimeLimitSec > 0 {
		p.TimeLimit = time.Duration(req.TimeLimitSec * float64(time.Second))
	}
	if req.RelativeGap != nil {
		p.RelativeGap = *req.RelativeGap
	}
	return p
}

func (s *Server) optionsFor(req model.PlanRequest) vrp.Options {
	opts := vrp.Options{SplitDeliveries: s.Cfg.Solver.SplitDeliveries}
	if req.SplitDeliveries != nil {
		opts.SplitDeliveries = *req.SplitDeliveries
	}
	return opts
}

func planEventType(status string) string {
	switch status {
	case model.PlanStatusCompleted:
		return model.EventPlanCompleted
	case model.PlanStatusInfeasible:
		return model.EventPlanInfeasible
	default:
		return model.EventPlanFailed
	}
}

func terminalEventData(p model.Plan) map[string]any {
	data := map[string]any{"planId": p.ID, "status": p.Status}
	if p.Error != "" {
		data["error"] = p.Error
	}
	if p.Result != nil {
		data["solveStatus"] = p.Result.SolveStatus
		data["objective"] = p.Result.Objective
		data["vehiclesUsed"] = p.Result.VehiclesUsed
		data["totalCost"] = p.Result.TotalCost
	}
	return data
}

func resultFromRun(res *vrp.Result) *model.PlanResult {
	out := &model.PlanResult{
		SolveStatus:  res.Status.String(),
		Objective:    res.Objective,
		Gap:          res.Gap,
		WallMs:       res.Report.Wall.Milliseconds(),
		VehiclesUsed: res.Report.VehiclesUsed,
		TotalKm:      res.Report.TotalKm,
		TotalLoadKg:  res.Report.TotalLoadKg,
		FixedCost:    res.Report.FixedCost,
		DistanceCost: res.Report.DistanceCost,
		TotalCost:    res.Report.TotalCost,
		Warnings:     res.Warnings,
	}
	for _, rr := range res.Report.Routes {
		out.Routes = append(out.Routes, model.RouteOut{
			Vehicle:      rr.Vehicle,
			Stops:        rr.Stops,
			Km:           rr.Km,
			LoadKg:       rr.LoadKg,
			FixedCost:    rr.FixedCost,
			DistanceCost: rr.DistanceCost,
			TotalCost:    rr.TotalCost,
		})
	}
	if res.LPPath != "" || res.SolPath != "" || res.IISPath != "" {
		out.Artifacts = &model.Artifacts{LP: res.LPPath, Sol: res.SolPath, IIS: res.IISPath}
	}
	return out
}

// renderPlanReport formats a stored plan the way the CLI prints one.
func renderPlanReport(p model.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan %s (%s)\n", p.ID, p.Status)
	if p.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", p.Error)
	}
	res := p.Result
	if res == nil {
		return sb.String()
	}
	fmt.Fprintf(&sb, "Solve status: %s (objective %.2f, gap %.2f%%, wall %s)\n",
		res.SolveStatus, res.Objective, 100*res.Gap, time.Duration(res.WallMs)*time.Millisecond)
	for _, warn := range res.Warnings {
		fmt.Fprintf(&sb, "WARNING: %s\n", warn)
	}
	fmt.Fprintf(&sb, "\n")
	for _, rr := range res.Routes {
		fmt.Fprintf(&sb, "Vehicle %d\n", rr.Vehicle)
		fmt.Fprintf(&sb, "  route:    %s\n", strings.Join(rr.Stops, " -> "))
		fmt.Fprintf(&sb, "  load:     %.0f kg\n", rr.LoadKg)
		fmt.Fprintf(&sb, "  distance: %.1f km\n", rr.Km)
		fmt.Fprintf(&sb, "  cost:     %.2f (fixed %.2f + distance %.2f)\n", rr.TotalCost, rr.FixedCost, rr.DistanceCost)
	}
	fmt.Fprintf(&sb, "\nVehicles used:  %d\n", res.VehiclesUsed)
	fmt.Fprintf(&sb, "Total distance: %.1f km\n", res.TotalKm)
	fmt.Fprintf(&sb, "Total load:     %.0f kg\n", res.TotalLoadKg)
	fmt.Fprintf(&sb, "Total cost:     %.2f (fixed %.2f + distance %.2f)\n", res.TotalCost, res.FixedCost, res.DistanceCost)
	return sb.String()
}

// LocationsHandler lists the matrix locations with their corridor role and
// configured base demand.
func (s *Server) LocationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	base := make(map[int]int64, len(s.demands))
	for name, kg := range s.demands {
		if idx, err := s.topo.Lookup(name); err == nil {
			base[idx] = kg
		}
	}
	items := make([]model.Location, 0, s.topo.Len())
	for i := 0; i < s.topo.Len(); i++ {
		loc := model.Location{Name: s.topo.Name(i), Role: model.RoleDelivery, DemandKg: base[i]}
		switch i {
		case s.seq.Origin:
			loc.Role = model.RoleOrigin
		case s.seq.BorderExit:
			loc.Role = model.RoleBorderExit
		case s.seq.BorderEntry:
			loc.Role = model.RoleBorderEntry
		}
		items = append(items, loc)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// SolverConfigHandler returns the defaults a plan request inherits for any
// field it leaves unset.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"defaults": map[string]any{
		"vehicles":        s.Cfg.Fleet.Vehicles,
		"capacityKg":      s.Cfg.Fleet.CapacityKg,
		"fixedCost":       s.Cfg.Fleet.FixedCost,
		"kmCost":          s.Cfg.Fleet.KmCost,
		"timeLimitSec":    s.Cfg.Solver.TimeLimitSec,
		"relativeGap":     s.Cfg.Solver.RelativeGap,
		"emphasis":        s.Cfg.Solver.Emphasis,
		"symmetry":        s.Cfg.Solver.Symmetry,
		"presolve":        s.Cfg.Solver.Presolve,
		"cuts":            s.Cfg.Solver.Cuts,
		"splitDeliveries": s.Cfg.Solver.SplitDeliveries,
	}})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions (admin).
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		if s.Cfg.Server.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.Cfg.Server.MaxBodyBytes)
		}
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			req.TenantID = p.Tenant
		}
		if err := validateSubscriptionRequest(&req); err != nil {
			writeProblem(w, 400, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, 500, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 201, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id} (admin).
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Not Found", "", r.URL.Path)
			return
		}
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// WebhookDeliveriesHandler lists webhook deliveries (admin).
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(405)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler requeues a failed or stuck delivery (admin).
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Not Found", "", r.URL.Path)
			return
		}
		writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 202, map[string]int{"accepted": 1})
}

// PlanMetricsHandler lists stored solver statistics (admin).
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	planID := r.URL.Query().Get("planId")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListPlanMetrics(r.Context(), p.Tenant, planID, limit)
	if err != nil {
		writeProblem(w, 500, "List plan metrics failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
