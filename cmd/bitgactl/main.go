package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	"bitga/pkg/bitga"
)

type usageErr struct {
	msg string
}

func (e usageErr) Error() string {
	return fmt.Sprintf("%s\nusage: bitgactl <run|decode> [flags]", e.msg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	var usage usageErr
	if errors.As(err, &usage) {
		os.Exit(2)
	}
	os.Exit(1)
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "decode":
		return runDecode(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	defaults := defaultRunConfig()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config TOML path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	population := fs.Int("pop", defaults.PopulationSize, "population size (even)")
	length := fs.Int("length", defaults.ChromosomeLength, "chromosome length in bits")
	generations := fs.Int("gens", defaults.Generations, "generation count, including the initial population")
	pMutation := fs.Float64("pmutation", defaults.PMutation, "per-allele mutation probability")
	seed := fs.Int64("seed", defaults.Seed, "rng seed")
	workers := fs.Int("workers", defaults.Workers, "worker count for offspring production (<=1 runs sequentially)")
	report := fs.String("report", defaults.Report, "per-generation report: table|plain|none")
	metrics := fs.Bool("metrics", defaults.Metrics, "print prometheus metrics after the run")
	trajectory := fs.Bool("trajectory", defaults.Trajectory, "print the best/mean trajectory after the run")
	colorMode := fs.String("color", "auto", "table colors: auto|always|never")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	logFormat := fs.String("log-format", "text", "log format: text|json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usageError(fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " ")))
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg := defaults
	if *configPath != "" {
		loaded, err := loadRunConfig(*configPath, defaults)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if setFlags["run-id"] {
		cfg.RunID = *runID
	}
	if setFlags["pop"] {
		cfg.PopulationSize = *population
	}
	if setFlags["length"] {
		cfg.ChromosomeLength = *length
	}
	if setFlags["gens"] {
		cfg.Generations = *generations
	}
	if setFlags["pmutation"] {
		cfg.PMutation = *pMutation
	}
	if setFlags["seed"] {
		cfg.Seed = *seed
	}
	if setFlags["workers"] {
		cfg.Workers = *workers
	}
	if setFlags["report"] {
		cfg.Report = *report
	}
	if setFlags["metrics"] {
		cfg.Metrics = *metrics
	}
	if setFlags["trajectory"] {
		cfg.Trajectory = *trajectory
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	logger, err := newLogger(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		return err
	}
	color, err := useColor(*colorMode, os.Stdout)
	if err != nil {
		return err
	}

	client, err := bitga.New(bitga.Options{
		Logger:  logger,
		Out:     os.Stdout,
		Report:  cfg.Report,
		Color:   color,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return err
	}

	summary, err := client.Run(ctx, cfg.runRequest())
	if err != nil {
		return err
	}

	if cfg.Trajectory {
		if err := client.WriteTrajectory(ctx, os.Stdout, summary.RunID); err != nil {
			return err
		}
	}
	if cfg.Metrics {
		if err := client.WriteMetrics(os.Stdout); err != nil {
			return err
		}
	}
	fmt.Printf("run_id=%s generations=%d best_fitness=%d best_chromosome=%s mutations=%d crossovers=%d\n",
		summary.RunID,
		summary.Generations,
		summary.FinalBestFitness,
		summary.FinalBest.Chromosome,
		summary.Mutations,
		summary.Crossovers,
	)
	return nil
}

func runDecode(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("decode requires at least one bit string")
	}
	for _, bits := range fs.Args() {
		result, err := bitga.Decode(bits)
		if err != nil {
			return fmt.Errorf("decode %q: %w", bits, err)
		}
		fmt.Printf("%s\tPhenotype: %d\tFitness: %d\n", result.Chromosome, result.Phenotype, result.Fitness)
	}
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("unsupported log level: %s", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func useColor(mode string, f *os.File) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		if os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	default:
		return false, fmt.Errorf("unsupported color mode: %s", mode)
	}
}

func usageError(msg string) error {
	return usageErr{msg: msg}
}
