// Package config holds the planner and API settings. Values come from a
// YAML file with environment variables layered on top, so a container
// deployment can run with nothing but env.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"borderfleet/internal/milp"
	"borderfleet/internal/vrp"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Redis     Redis     `yaml:"redis"`
	Auth      Auth      `yaml:"auth"`
	Fleet     Fleet     `yaml:"fleet"`
	Matrix    Matrix    `yaml:"matrix"`
	Transit   Transit   `yaml:"transit"`
	Demands   Demands   `yaml:"demands"`
	Solver    Solver    `yaml:"solver"`
	Artifacts Artifacts `yaml:"artifacts"`
	Webhooks  Webhooks  `yaml:"webhooks"`
}

type Server struct {
	Addr            string  `yaml:"addr"`
	ReadHeaderSec   int     `yaml:"readHeaderSec"`
	ShutdownSec     int     `yaml:"shutdownSec"`
	RateRPS         float64 `yaml:"rateRps"`
	RateBurst       int     `yaml:"rateBurst"`
	MaxBodyBytes    int64   `yaml:"maxBodyBytes"`
	SolveConcurrent int     `yaml:"solveConcurrent"`
}

type Storage struct {
	// Driver is memory, postgres or sqlite.
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrationsDir"`
}

type Redis struct {
	// URL enables the Redis event broker; empty keeps the in-process one.
	URL string `yaml:"url"`
}

type Auth struct {
	// Mode is dev (X-Auth header), hmac (HS256 bearer tokens) or jwks
	// (RS256 bearer tokens verified against a JWKS endpoint).
	Mode       string `yaml:"mode"`
	HMACSecret string `yaml:"hmacSecret"`
	JWKSURL    string `yaml:"jwksUrl"`
}

type Fleet struct {
	Vehicles   int     `yaml:"vehicles"`
	CapacityKg int64   `yaml:"capacityKg"`
	FixedCost  float64 `yaml:"fixedCost"`
	KmCost     float64 `yaml:"kmCost"`
}

type Matrix struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"`
}

type Transit struct {
	Origin      string `yaml:"origin"`
	BorderExit  string `yaml:"borderExit"`
	BorderEntry string `yaml:"borderEntry"`
}

type Demands struct {
	// Source is builtin, static, csv or excel.
	Source string           `yaml:"source"`
	Table  map[string]int64 `yaml:"table"`
	Path   string           `yaml:"path"`
	Sheet  string           `yaml:"sheet"`
	Comma  string           `yaml:"comma"`
}

type Solver struct {
	TimeLimitSec    int     `yaml:"timeLimitSec"`
	RelativeGap     float64 `yaml:"relativeGap"`
	Emphasis        string  `yaml:"emphasis"`
	Symmetry        int     `yaml:"symmetry"`
	Presolve        int     `yaml:"presolve"`
	Cuts            int     `yaml:"cuts"`
	Workers         int     `yaml:"workers"`
	LogProgress     bool    `yaml:"logProgress"`
	SplitDeliveries bool    `yaml:"splitDeliveries"`
}

type Artifacts struct {
	Dir               string `yaml:"dir"`
	Base              string `yaml:"base"`
	WriteLP           bool   `yaml:"writeLp"`
	WriteSol          bool   `yaml:"writeSol"`
	ExplainInfeasible bool   `yaml:"explainInfeasible"`
}

type Webhooks struct {
	Enabled     bool `yaml:"enabled"`
	WorkerSec   int  `yaml:"workerSec"`
	MaxAttempts int  `yaml:"maxAttempts"`
}

// Default mirrors the long-haul setup the planner was tuned on: a 110
// truck fleet running Istanbul to France via Kapıkule and Strasbourg.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadHeaderSec:   5,
			ShutdownSec:     10,
			RateRPS:         10,
			RateBurst:       20,
			MaxBodyBytes:    1 << 20,
			SolveConcurrent: 2,
		},
		Storage: Storage{Driver: "memory", MigrationsDir: "db/migrations"},
		Auth:    Auth{Mode: "dev"},
		Fleet:   Fleet{Vehicles: 110, CapacityKg: 23000, FixedCost: 2700, KmCost: 0.32},
		Matrix:  Matrix{Sheet: "Sheet1"},
		Transit: Transit{Origin: "Istanbul", BorderExit: "Kapıkule", BorderEntry: "Strasbourg"},
		Demands: Demands{Source: "builtin"},
		Solver: Solver{
			TimeLimitSec: 120,
			RelativeGap:  0.01,
			Emphasis:     "feasibility",
			Symmetry:     2,
			Presolve:     2,
			Cuts:         2,
		},
		Artifacts: Artifacts{Base: "truckplan", WriteLP: true, WriteSol: true, ExplainInfeasible: true},
		Webhooks:  Webhooks{Enabled: true, WorkerSec: 5, MaxAttempts: 8},
	}
}

// Load reads path over the defaults, then applies env overrides. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("JWT_HMAC_SECRET"); v != "" {
		c.Auth.HMACSecret = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
		c.Auth.JWKSURL = v
	}
	if v := os.Getenv("MATRIX_PATH"); v != "" {
		c.Matrix.Path = v
	}
	if v := os.Getenv("ARTIFACT_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("RATE_RPS"), 64); err == nil {
		c.Server.RateRPS = v
	}
	if v, err := strconv.Atoi(os.Getenv("RATE_BURST")); err == nil {
		c.Server.RateBurst = v
	}
	if v, err := strconv.Atoi(os.Getenv("SOLVE_TIME_LIMIT_SEC")); err == nil {
		c.Solver.TimeLimitSec = v
	}
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if (c.Storage.Driver == "postgres" || c.Storage.Driver == "sqlite") && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage driver %s needs a dsn", c.Storage.Driver)
	}
	switch c.Auth.Mode {
	case "dev", "hmac", "jwks":
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	}
	if c.Auth.Mode == "hmac" && c.Auth.HMACSecret == "" {
		return fmt.Errorf("config: hmac auth needs a secret")
	}
	if c.Auth.Mode == "jwks" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("config: jwks auth needs a url")
	}
	if c.Fleet.Vehicles <= 0 || c.Fleet.CapacityKg <= 0 {
		return fmt.Errorf("config: fleet needs positive vehicles and capacity")
	}
	if _, err := c.Solver.emphasis(); err != nil {
		return err
	}
	switch c.Demands.Source {
	case "builtin", "static", "csv", "excel":
	default:
		return fmt.Errorf("config: unknown demand source %q", c.Demands.Source)
	}
	if (c.Demands.Source == "csv" || c.Demands.Source == "excel") && c.Demands.Path == "" {
		return fmt.Errorf("config: demand source %s needs a path", c.Demands.Source)
	}
	for name, trim := range map[string]string{
		"origin":      strings.TrimSpace(c.Transit.Origin),
		"borderExit":  strings.TrimSpace(c.Transit.BorderExit),
		"borderEntry": strings.TrimSpace(c.Transit.BorderEntry),
	} {
		if trim == "" {
			return fmt.Errorf("config: transit %s must be set", name)
		}
	}
	return nil
}

func (s Solver) emphasis() (milp.Emphasis, error) {
	switch s.Emphasis {
	case "", "balanced":
		return milp.EmphasisBalanced, nil
	case "feasibility":
		return milp.EmphasisFeasibility, nil
	case "bound":
		return milp.EmphasisBound, nil
	default:
		return 0, fmt.Errorf("config: unknown solver emphasis %q", s.Emphasis)
	}
}

// EngineParams converts the solver section for the engine.
func (s Solver) EngineParams() milp.Params {
	em, err := s.emphasis()
	if err != nil {
		em = milp.EmphasisBalanced
	}
	return milp.Params{
		TimeLimit:   time.Duration(s.TimeLimitSec) * time.Second,
		RelativeGap: s.RelativeGap,
		Emphasis:    em,
		Symmetry:    s.Symmetry,
		Presolve:    s.Presolve,
		Cuts:        s.Cuts,
		Workers:     s.Workers,
		LogProgress: s.LogProgress,
	}
}

// FleetSpec converts the fleet section for the planner.
func (f Fleet) FleetSpec() vrp.Fleet {
	return vrp.Fleet{
		Vehicles:   f.Vehicles,
		CapacityKg: f.CapacityKg,
		FixedCost:  f.FixedCost,
		KmCost:     f.KmCost,
	}
}

// ArtifactSpec converts the artifacts section for the planner.
func (a Artifacts) ArtifactSpec() vrp.Artifacts {
	return vrp.Artifacts{
		Dir:               a.Dir,
		Base:              a.Base,
		WriteLP:           a.WriteLP,
		WriteSol:          a.WriteSol,
		ExplainInfeasible: a.ExplainInfeasible,
	}
}
