package api

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"borderfleet/internal/auth"
	"borderfleet/internal/config"
	"borderfleet/internal/cpsat"
	"borderfleet/internal/demand"
	"borderfleet/internal/metrics"
	"borderfleet/internal/milp"
	"borderfleet/internal/store"
	"borderfleet/internal/topology"
	"borderfleet/internal/webhooks"
)

// Server carries the handler dependencies: storage, event fanout, auth and
// the solve pipeline inputs.
type Server struct {
	Cfg    config.Config
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Engine milp.Engine
	Log    *log.Logger

	topo     *topology.Topology
	seq      topology.Sequence
	demands  map[string]int64
	limiter  *tenantLimiter
	solveSem chan struct{}
}

// NewServer wires a Server from configuration: store, event broker, token
// verifier, the distance matrix and the base demand table.
func NewServer(cfg config.Config) (*Server, error) {
	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	topo, seq, err := loadTopology(cfg)
	if err != nil {
		return nil, err
	}
	demands, err := loadDemands(cfg.Demands)
	if err != nil {
		return nil, err
	}
	var broker EventBroker
	if cfg.Redis.URL != "" {
		rb, err := NewRedisBroker(cfg.Redis.URL)
		if err != nil {
			log.Printf("api: redis broker unavailable, using in-process broker: %v", err)
			broker = NewBroker()
		} else {
			broker = rb
		}
	} else {
		broker = NewBroker()
	}
	return newServer(cfg, st, broker, topo, seq, demands), nil
}

func newServer(cfg config.Config, st store.Store, broker EventBroker, topo *topology.Topology, seq topology.Sequence, demands map[string]int64) *Server {
	concurrent := cfg.Server.SolveConcurrent
	if concurrent <= 0 {
		concurrent = 1
	}
	return &Server{
		Cfg:      cfg,
		Store:    st,
		Pub:      webhooks.NewPublisher(st),
		Auth:     auth.New(cfg.Auth.Mode, cfg.Auth.HMACSecret, cfg.Auth.JWKSURL),
		Broker:   broker,
		Engine:   cpsat.New(),
		Log:      log.Default(),
		topo:     topo,
		seq:      seq,
		demands:  demands,
		limiter:  newTenantLimiter(cfg.Server.RateRPS, cfg.Server.RateBurst),
		solveSem: make(chan struct{}, concurrent),
	}
}

func openStore(cfg config.Storage) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := store.NewPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MigrationsDir != "" {
			if err := pg.MigrateDir(cfg.MigrationsDir); err != nil {
				return nil, fmt.Errorf("api: migrate: %w", err)
			}
		}
		return pg, nil
	case "sqlite":
		return store.NewSQLite(cfg.DSN)
	default:
		return store.NewMemory(), nil
	}
}

func loadTopology(cfg config.Config) (*topology.Topology, topology.Sequence, error) {
	if cfg.Matrix.Path == "" {
		return nil, topology.Sequence{}, fmt.Errorf("api: matrix path must be set (MATRIX_PATH)")
	}
	names, dist, err := topology.LoadExcel(cfg.Matrix.Path, cfg.Matrix.Sheet)
	if err != nil {
		return nil, topology.Sequence{}, err
	}
	topo, err := topology.New(names, dist)
	if err != nil {
		return nil, topology.Sequence{}, err
	}
	seq, err := topo.ResolveSequence(cfg.Transit.Origin, cfg.Transit.BorderExit, cfg.Transit.BorderEntry)
	if err != nil {
		return nil, topology.Sequence{}, err
	}
	return topo, seq, nil
}

func loadDemands(cfg config.Demands) (map[string]int64, error) {
	var src demand.Source
	switch cfg.Source {
	case "", "builtin":
		src = demand.Static{Table: demand.Defaults()}
	case "static":
		src = demand.Static{Table: cfg.Table}
	case "csv":
		var comma rune
		if cfg.Comma != "" {
			comma = []rune(cfg.Comma)[0]
		}
		src = demand.CSV{Path: cfg.Path, Comma: comma}
	case "excel":
		src = demand.Excel{Path: cfg.Path, Sheet: cfg.Sheet}
	default:
		return nil, fmt.Errorf("api: unknown demand source %q", cfg.Source)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return src.Fetch(ctx)
}

func (s *Server) logf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}

// NewWebhookWorker creates the background delivery worker per the webhook
// configuration.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, time.Duration(s.Cfg.Webhooks.WorkerSec)*time.Second, s.Cfg.Webhooks.MaxAttempts)
}

// statusRecorder captures the response code for instrumentation while
// forwarding Flush and Hijack so SSE and WebSocket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Instrument records request counts and latencies on the metrics registry,
// labeled by mux pattern where available to keep cardinality bounded.
func (s *Server) Instrument(next http.Handler) http.Handler {
	metrics.RegisterDefault()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}
		status := strconv.Itoa(rec.code)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
