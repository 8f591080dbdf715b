package api

import (
    "encoding/json"
    "net/http"
    "strings"
)

// Minimal GraphQL-like HTTP handler for demo purposes.
// Supports queries:
// - plans: list plans for tenant
// - plan(id: $id): get plan by id
// Variables may contain {"id":"..."}
func (s *Server) GraphQLHTTPHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    var body struct {
        Query     string                 `json:"query"`
        Variables map[string]any         `json:"variables"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
    q := strings.ToLower(body.Query)
    p := s.getPrincipal(r)
    switch {
    case strings.Contains(q, "plan("):
        id := ""
        if body.Variables != nil { if v, ok := body.Variables["id"].(string); ok { id = v } }
        if id == "" { writeProblem(w, 400, "Missing id", "", r.URL.Path); return }
        pl, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
        if err != nil { writeProblem(w, 404, "Not Found", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"data": map[string]any{"plan": pl}})
    case strings.Contains(q, "plans"):
        status := ""; limit := 100
        if body.Variables != nil {
            if v, ok := body.Variables["status"].(string); ok { status = v }
            if v, ok := body.Variables["limit"].(float64); ok && v > 0 { limit = int(v) }
        }
        items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, status, "", limit)
        if err != nil { writeProblem(w, 500, "List plans failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"data": map[string]any{"plans": items, "nextCursor": next}})
    default:
        writeProblem(w, 400, "Unsupported query", "", r.URL.Path)
    }
}
