// Command planner runs one solve end to end: load the distance workbook and
// the demand table, build the model, call the engine and print the
// per-vehicle report. Flags override the config file, which overrides the
// built-in defaults.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"borderfleet/internal/config"
	"borderfleet/internal/cpsat"
	"borderfleet/internal/demand"
	"borderfleet/internal/topology"
	"borderfleet/internal/vrp"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", os.Getenv("CONFIG"), "path to config yaml")
	matrixPath := flag.String("matrix", "", "distance workbook path (xlsx)")
	matrixSheet := flag.String("sheet", "", "distance workbook sheet")
	demandSrc := flag.String("demands", "", "demand source: builtin, csv or excel")
	demandPath := flag.String("demands-path", "", "demand file for csv/excel sources")
	vehicles := flag.Int("vehicles", 0, "fleet size")
	capacity := flag.Int64("capacity", 0, "vehicle capacity in kg")
	fixedCost := flag.Float64("fixed-cost", 0, "fixed cost per used vehicle")
	kmCost := flag.Float64("km-cost", 0, "cost per km")
	timeLimit := flag.Int("time-limit", 0, "solver time limit in seconds")
	gap := flag.Float64("gap", 0, "relative MIP gap")
	split := flag.Bool("split", false, "allow deliveries to be split across vehicles")
	artifactDir := flag.String("artifacts", "", "directory for .lp/.sol/.iis dumps")
	quiet := flag.Bool("quiet", false, "suppress progress logging")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("planner: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "matrix":
			cfg.Matrix.Path = *matrixPath
		case "sheet":
			cfg.Matrix.Sheet = *matrixSheet
		case "demands":
			cfg.Demands.Source = *demandSrc
		case "demands-path":
			cfg.Demands.Path = *demandPath
		case "vehicles":
			cfg.Fleet.Vehicles = *vehicles
		case "capacity":
			cfg.Fleet.CapacityKg = *capacity
		case "fixed-cost":
			cfg.Fleet.FixedCost = *fixedCost
		case "km-cost":
			cfg.Fleet.KmCost = *kmCost
		case "time-limit":
			cfg.Solver.TimeLimitSec = *timeLimit
		case "gap":
			cfg.Solver.RelativeGap = *gap
		case "split":
			cfg.Solver.SplitDeliveries = *split
		case "artifacts":
			cfg.Artifacts.Dir = *artifactDir
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("planner: %v", err)
	}
	if cfg.Matrix.Path == "" {
		log.Fatalf("planner: matrix path must be set (-matrix or MATRIX_PATH)")
	}

	names, dist, err := topology.LoadExcel(cfg.Matrix.Path, cfg.Matrix.Sheet)
	if err != nil {
		log.Fatalf("planner: %v", err)
	}
	topo, err := topology.New(names, dist)
	if err != nil {
		log.Fatalf("planner: %v", err)
	}
	seq, err := topo.ResolveSequence(cfg.Transit.Origin, cfg.Transit.BorderExit, cfg.Transit.BorderEntry)
	if err != nil {
		log.Fatalf("planner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	demands, err := loadDemands(ctx, cfg.Demands)
	if err != nil {
		log.Fatalf("planner: %v", err)
	}
	inst, err := vrp.NewInstance(topo, seq, demands, cfg.Fleet.FleetSpec())
	if err != nil {
		log.Fatalf("planner: %v", err)
	}

	p := &vrp.Planner{
		Engine:    cpsat.New(),
		Artifacts: cfg.Artifacts.ArtifactSpec(),
	}
	if !*quiet {
		p.Log = log.New(os.Stderr, "", log.LstdFlags)
		p.Progress = func(stage string, data map[string]any) {
			switch stage {
			case "building":
				log.Printf("building model for %v locations, %v vehicles", data["locations"], data["vehicles"])
			case "solving":
				log.Printf("solving %v variables, %v constraints (limit %ds)", data["variables"], data["constraints"], cfg.Solver.TimeLimitSec)
			}
		}
	}

	res, err := p.Plan(ctx, inst, vrp.Options{SplitDeliveries: cfg.Solver.SplitDeliveries}, cfg.Solver.EngineParams())
	if err != nil {
		var demandErr *vrp.InfeasibleDemandError
		var modelErr *vrp.EngineInfeasibleError
		var limitErr *vrp.EngineTimeLimitError
		if errors.As(err, &demandErr) || errors.As(err, &modelErr) || errors.As(err, &limitErr) {
			fmt.Println(err)
			if res != nil && res.IISPath != "" {
				fmt.Printf("conflict report written to %s\n", res.IISPath)
			}
			os.Exit(1)
		}
		log.Fatalf("planner: %v", err)
	}

	fmt.Print(res.Report.Text())
	if res.LPPath != "" {
		log.Printf("model written to %s", res.LPPath)
	}
	if res.SolPath != "" {
		log.Printf("solution written to %s", res.SolPath)
	}
}

func loadDemands(ctx context.Context, cfg config.Demands) (map[string]int64, error) {
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
		return nil, fmt.Errorf("unknown demand source %q", cfg.Source)
	}
	return src.Fetch(ctx)
}
