package api

import (
    "encoding/json"
    "net/http"
    "os"
    "time"

    "borderfleet/internal/buildinfo"
)

// VersionHandler returns build metadata.
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, buildinfo.Info())
}

// DebugJSON reports build metadata and the effective non-secret config.
// Admin only.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
        return
    }
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "addr":            s.Cfg.Server.Addr,
            "storageDriver":   s.Cfg.Storage.Driver,
            "authMode":        s.Cfg.Auth.Mode,
            "matrixPath":      s.Cfg.Matrix.Path,
            "demandSource":    s.Cfg.Demands.Source,
            "vehicles":        s.Cfg.Fleet.Vehicles,
            "capacityKg":      s.Cfg.Fleet.CapacityKg,
            "timeLimitSec":    s.Cfg.Solver.TimeLimitSec,
            "rateRps":         s.Cfg.Server.RateRPS,
            "rateBurst":       s.Cfg.Server.RateBurst,
            "solveConcurrent": s.Cfg.Server.SolveConcurrent,
            "artifactDir":     s.Cfg.Artifacts.Dir,
            "webhooksEnabled": s.Cfg.Webhooks.Enabled,
            "HAS_DATABASE_URL": os.Getenv("DATABASE_URL") != "",
            "HAS_REDIS_URL":    os.Getenv("REDIS_URL") != "",
        },
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
