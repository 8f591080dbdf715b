package api

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "borderfleet/internal/config"
    "borderfleet/internal/milp"
    "borderfleet/internal/model"
    "borderfleet/internal/store"
    "borderfleet/internal/topology"
)

type fakeEngine struct {
    calls int
    solve func(m *milp.Model) (*milp.Solution, error)
}

func (f *fakeEngine) Solve(_ context.Context, m *milp.Model, _ milp.Params) (*milp.Solution, error) {
    f.calls++
    return f.solve(m)
}

// tourSolution assigns the single-vehicle grand tour
// Istanbul -> Kapıkule -> Strasbourg -> Lille -> Rouen -> Istanbul by
// variable name.
func tourSolution(m *milp.Model) (*milp.Solution, error) {
    set := map[string]float64{
        "used[0]":                      1,
        "arc[0][istanbul][kapıkule]":   1,
        "arc[0][kapıkule][strasbourg]": 1,
        "arc[0][strasbourg][lille]":    1,
        "arc[0][lille][rouen]":         1,
        "arc[0][rouen][istanbul]":      1,
        "visit[0][lille]":              1,
        "visit[0][rouen]":              1,
        "order[0][lille]":              1,
        "order[0][rouen]":              2,
    }
    values := make([]float64, m.NumVars())
    for name, val := range set {
        v, ok := m.VarByName(name)
        if !ok { return nil, fmt.Errorf("no variable named %q", name) }
        values[v] = val
    }
    return &milp.Solution{Status: milp.StatusOptimal, Objective: 4540, Bound: 4540, Values: values}, nil
}

func testServer(t *testing.T, mut func(*config.Config)) *Server {
    t.Helper()
    topo, err := topology.New([]string{"Istanbul", "Kapıkule", "Strasbourg", "Lille", "Rouen"}, [][]float64{
        {0, 200, 2000, 2900, 3000},
        {200, 0, 1800, 2100, 2200},
        {2000, 1800, 0, 500, 600},
        {2900, 2100, 500, 0, 250},
        {3000, 2200, 600, 250, 0},
    })
    if err != nil { t.Fatalf("topology: %v", err) }
    seq, err := topo.ResolveSequence("Istanbul", "Kapıkule", "Strasbourg")
    if err != nil { t.Fatalf("sequence: %v", err) }
    cfg := config.Default()
    cfg.Fleet.Vehicles = 3
    if mut != nil { mut(&cfg) }
    s := newServer(cfg, store.NewMemory(), NewBroker(), topo, seq, map[string]int64{"Lille": 600, "Rouen": 400})
    s.Engine = &fakeEngine{solve: tourSolution}
    return s
}

func postPlan(t *testing.T, s *Server, body string, role string) *httptest.ResponseRecorder {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", role)
    s.PlansHandler(rr, req)
    return rr
}

func TestHealthReadyVersion(t *testing.T) {
    s := testServer(t, nil)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.VersionHandler(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
    if rr.Code != 200 { t.Fatalf("version: got %d", rr.Code) }
}

func TestPlanCreateCompletes(t *testing.T) {
    s := testServer(t, nil)
    rr := postPlan(t, s, `{"vehicles":2}`, "dispatcher")
    if rr.Code != http.StatusCreated { t.Fatalf("create plan: got %d body %s", rr.Code, rr.Body.String()) }
    var p model.Plan
    if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil { t.Fatalf("decode plan: %v", err) }
    if p.Status != model.PlanStatusCompleted { t.Fatalf("status = %s, error = %s", p.Status, p.Error) }
    if p.Result == nil || len(p.Result.Routes) != 1 { t.Fatalf("result: %+v", p.Result) }
    r := p.Result.Routes[0]
    want := "Istanbul -> Kapıkule -> Strasbourg -> Lille -> Rouen -> Istanbul"
    if got := strings.Join(r.Stops, " -> "); got != want { t.Fatalf("stops = %s", got) }
    if r.Km != 5750 || r.LoadKg != 1000 { t.Fatalf("km %v load %v", r.Km, r.LoadKg) }
    if p.Result.VehiclesUsed != 1 || p.Result.Objective != 4540 { t.Fatalf("result totals: %+v", p.Result) }
    if p.Result.TotalCost != 2700+0.32*5750 { t.Fatalf("total cost = %v", p.Result.TotalCost) }

    // GET by id
    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlanByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("get plan: %d", rr.Code) }

    // List with status filter
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/plans?status=completed&limit=5", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlansHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("list plans: %d", rr.Code) }
    var lst struct{ Items []model.Plan `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &lst); err != nil { t.Fatalf("decode list: %v", err) }
    if len(lst.Items) != 1 { t.Fatalf("items = %d", len(lst.Items)) }

    // Plain-text report
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/report", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlanByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("report: %d", rr.Code) }
    text := rr.Body.String()
    if !strings.Contains(text, "Plan "+p.ID) || !strings.Contains(text, "Vehicle 0") {
        t.Fatalf("report text:\n%s", text)
    }
}

func TestPlanRejectsBadRequests(t *testing.T) {
    s := testServer(t, nil)
    // unknown location
    rr := postPlan(t, s, `{"demands":{"Atlantis":500}}`, "dispatcher")
    if rr.Code != 400 { t.Fatalf("unknown location: got %d", rr.Code) }
    // negative vehicles
    rr = postPlan(t, s, `{"vehicles":-1}`, "dispatcher")
    if rr.Code != 400 { t.Fatalf("negative vehicles: got %d", rr.Code) }
    // viewer role cannot submit
    rr = postPlan(t, s, `{}`, "viewer")
    if rr.Code != 403 { t.Fatalf("viewer: got %d", rr.Code) }
    // nothing was stored
    if eng := s.Engine.(*fakeEngine); eng.calls != 0 { t.Fatalf("engine called %d times", eng.calls) }
}

func TestPlanOversizedDemandInfeasibleBeforeSolve(t *testing.T) {
    s := testServer(t, nil)
    rr := postPlan(t, s, `{"demands":{"Lille":25000}}`, "dispatcher")
    if rr.Code != http.StatusCreated { t.Fatalf("got %d body %s", rr.Code, rr.Body.String()) }
    var p model.Plan
    if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil { t.Fatalf("decode: %v", err) }
    if p.Status != model.PlanStatusInfeasible { t.Fatalf("status = %s", p.Status) }
    if !strings.Contains(p.Error, "exceeds vehicle capacity") { t.Fatalf("error = %s", p.Error) }
    if eng := s.Engine.(*fakeEngine); eng.calls != 0 { t.Fatalf("engine called before precheck") }
}

func TestPlanEngineInfeasible(t *testing.T) {
    s := testServer(t, nil)
    s.Engine = &fakeEngine{solve: func(*milp.Model) (*milp.Solution, error) {
        return &milp.Solution{Status: milp.StatusInfeasible}, nil
    }}
    rr := postPlan(t, s, `{}`, "dispatcher")
    if rr.Code != http.StatusCreated { t.Fatalf("got %d", rr.Code) }
    var p model.Plan
    if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil { t.Fatalf("decode: %v", err) }
    if p.Status != model.PlanStatusInfeasible { t.Fatalf("status = %s", p.Status) }
    if p.Result == nil || p.Result.SolveStatus != "infeasible" { t.Fatalf("result: %+v", p.Result) }
}

func TestPlanDeleteThenGone(t *testing.T) {
    s := testServer(t, nil)
    rr := postPlan(t, s, `{}`, "dispatcher")
    var p model.Plan
    _ = json.Unmarshal(rr.Body.Bytes(), &p)

    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodDelete, "/v1/plans/"+p.ID, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "dispatcher")
    s.PlanByIDHandler(rr, req)
    if rr.Code != 204 { t.Fatalf("delete: %d", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlanByIDHandler(rr, req)
    if rr.Code != 404 { t.Fatalf("get after delete: %d", rr.Code) }
}

func TestSubscriptionsAndDeliveries(t *testing.T) {
    s := testServer(t, nil)
    // non-admin cannot create
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", strings.NewReader(`{"url":"https://example.invalid/hook","eventTypes":["plan.completed"]}`))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "viewer")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("viewer create sub: %d", rr.Code) }

    // admin creates
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", strings.NewReader(`{"url":"https://example.invalid/hook","secret":"shh","eventTypes":["plan.completed"]}`))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != 201 { t.Fatalf("create sub: %d body %s", rr.Code, rr.Body.String()) }
    var sub model.Subscription
    _ = json.Unmarshal(rr.Body.Bytes(), &sub)

    // a completed run enqueues one delivery
    if rr := postPlan(t, s, `{}`, "dispatcher"); rr.Code != 201 { t.Fatalf("plan: %d", rr.Code) }
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.WebhookDeliveriesHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("deliveries: %d", rr.Code) }
    var dres struct{ Items []model.WebhookDelivery `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil { t.Fatalf("decode deliveries: %v", err) }
    if len(dres.Items) != 1 || dres.Items[0].EventType != "plan.completed" {
        t.Fatalf("deliveries = %+v", dres.Items)
    }

    // retry requeues
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/admin/webhook-deliveries/"+dres.Items[0].ID+"/retry", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.WebhookDeliveryRetryHandler(rr, req)
    if rr.Code != 202 { t.Fatalf("retry: %d", rr.Code) }

    // delete subscription
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.SubscriptionByIDHandler(rr, req)
    if rr.Code != 204 { t.Fatalf("delete sub: %d", rr.Code) }
}

func TestPlanMetricsAdminOnly(t *testing.T) {
    s := testServer(t, nil)
    if rr := postPlan(t, s, `{}`, "dispatcher"); rr.Code != 201 { t.Fatalf("plan: %d", rr.Code) }

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/admin/plan-metrics", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "dispatcher")
    s.PlanMetricsHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("dispatcher metrics: %d", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/admin/plan-metrics", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.PlanMetricsHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("metrics: %d", rr.Code) }
    var mres struct{ Items []model.PlanMetrics `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &mres); err != nil { t.Fatalf("decode metrics: %v", err) }
    if len(mres.Items) != 1 || mres.Items[0].Variables == 0 || mres.Items[0].SolveStatus != "optimal" {
        t.Fatalf("metrics = %+v", mres.Items)
    }
}

func TestLocationsRoles(t *testing.T) {
    s := testServer(t, nil)
    rr := httptest.NewRecorder()
    s.LocationsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/locations", nil))
    if rr.Code != 200 { t.Fatalf("locations: %d", rr.Code) }
    var res struct{ Items []model.Location `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode: %v", err) }
    if len(res.Items) != 5 { t.Fatalf("items = %d", len(res.Items)) }
    roles := map[string]string{}
    for _, l := range res.Items { roles[l.Name] = l.Role }
    if roles["Istanbul"] != model.RoleOrigin || roles["Kapıkule"] != model.RoleBorderExit ||
        roles["Strasbourg"] != model.RoleBorderEntry || roles["Lille"] != model.RoleDelivery {
        t.Fatalf("roles = %v", roles)
    }
    for _, l := range res.Items {
        if l.Name == "Lille" && l.DemandKg != 600 { t.Fatalf("Lille demand = %d", l.DemandKg) }
    }
}

func TestSolverConfigDefaults(t *testing.T) {
    s := testServer(t, nil)
    rr := httptest.NewRecorder()
    s.SolverConfigHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solver/config", nil))
    if rr.Code != 200 { t.Fatalf("solver config: %d", rr.Code) }
    var res struct{ Defaults map[string]any `json:"defaults"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode: %v", err) }
    if v, _ := res.Defaults["vehicles"].(float64); v != 3 { t.Fatalf("vehicles = %v", res.Defaults["vehicles"]) }
}

func TestGraphQLPlanQueries(t *testing.T) {
    s := testServer(t, nil)
    rr := postPlan(t, s, `{}`, "dispatcher")
    var p model.Plan
    _ = json.Unmarshal(rr.Body.Bytes(), &p)

    // plans
    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"query { plans }"}`))
    req.Header.Set("X-Tenant-Id", "t_test")
    s.GraphQLHTTPHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("graphql plans: %d", rr.Code) }
    if !bytes.Contains(rr.Body.Bytes(), []byte(p.ID)) { t.Fatalf("plans body: %s", rr.Body.String()) }

    // plan(id)
    qb, _ := json.Marshal(map[string]any{
        "query":     "query($id: ID!) { plan(id: $id) }",
        "variables": map[string]any{"id": p.ID},
    })
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(qb))
    req.Header.Set("X-Tenant-Id", "t_test")
    s.GraphQLHTTPHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("graphql plan: %d", rr.Code) }
    if !bytes.Contains(rr.Body.Bytes(), []byte(`"completed"`)) { t.Fatalf("plan body: %s", rr.Body.String()) }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}

func TestPlanEventsSSE(t *testing.T) {
    s := testServer(t, nil)
    rr := postPlan(t, s, `{}`, "dispatcher")
    var p model.Plan
    if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil { t.Fatalf("decode plan: %v", err) }

    sseReq := httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/events/stream", nil)
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    sseReq = sseReq.WithContext(ctx)
    sseReq.Header.Set("X-Tenant-Id", "t_test")

    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        s.PlanByIDHandler(rec, sseReq)
        close(done)
    }()

    // The plan is already terminal, so the stream replays its last event.
    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if bytes.Contains(rec.buf.Bytes(), []byte("event: plan.completed")) { break }
        time.Sleep(10 * time.Millisecond)
    }
    if !bytes.Contains(rec.buf.Bytes(), []byte("event: heartbeat")) {
        t.Fatalf("SSE missing heartbeat. Body: %s", rec.buf.String())
    }
    if !bytes.Contains(rec.buf.Bytes(), []byte("event: plan.completed")) {
        t.Fatalf("SSE missing terminal replay. Body: %s", rec.buf.String())
    }

    // Live events still flow after the replay.
    s.Broker.Publish(p.ID, SSEEvent{Type: "plan.solving", Data: map[string]any{"planId": p.ID}})
    deadline = time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if bytes.Contains(rec.buf.Bytes(), []byte("event: plan.solving")) { break }
        time.Sleep(10 * time.Millisecond)
    }
    if !bytes.Contains(rec.buf.Bytes(), []byte("event: plan.solving")) {
        t.Fatalf("SSE missing live event. Body: %s", rec.buf.String())
    }

    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }
}

func TestPlanArtifactsServed(t *testing.T) {
    dir := t.TempDir()
    s := testServer(t, func(c *config.Config) { c.Artifacts.Dir = dir })
    rr := postPlan(t, s, `{}`, "dispatcher")
    var p model.Plan
    if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil { t.Fatalf("decode plan: %v", err) }
    if p.Result == nil || p.Result.Artifacts == nil { t.Fatalf("no artifacts recorded: %+v", p.Result) }

    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/artifacts/lp", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlanByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("lp artifact: %d", rr.Code) }
    if !strings.Contains(rr.Body.String(), "Minimize") { t.Fatalf("lp body: %s", rr.Body.String()) }

    // no conflict report for a feasible run
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/artifacts/iis", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlanByIDHandler(rr, req)
    if rr.Code != 404 { t.Fatalf("iis artifact: %d", rr.Code) }
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
    s := testServer(t, func(c *config.Config) { c.Server.RateRPS = 1; c.Server.RateBurst = 1 })
    h := s.RateLimit(http.HandlerFunc(s.PlansHandler))
    codes := []int{}
    for i := 0; i < 2; i++ {
        rr := httptest.NewRecorder()
        req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
        req.Header.Set("X-Tenant-Id", "t_test")
        h.ServeHTTP(rr, req)
        codes = append(codes, rr.Code)
    }
    if codes[0] != 200 || codes[1] != 429 { t.Fatalf("codes = %v", codes) }
}
