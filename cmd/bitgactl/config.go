package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"bitga/internal/stats"
	"bitga/pkg/bitga"
)

const defaultSeed = 1

type runConfig struct {
	RunID            string
	PopulationSize   int
	ChromosomeLength int
	Generations      int
	PMutation        float64
	Seed             int64
	Workers          int
	Report           string
	Metrics          bool
	Trajectory       bool
}

// fileConfig mirrors the TOML keys accepted by --config. Pointer fields tell
// absent keys apart from zero values.
type fileConfig struct {
	RunID               *string  `toml:"run_id"`
	PopulationSize      *int     `toml:"population_size"`
	ChromosomeLength    *int     `toml:"chromosome_length"`
	Generations         *int     `toml:"generations"`
	MutationProbability *float64 `toml:"mutation_probability"`
	Seed                *int64   `toml:"seed"`
	Workers             *int     `toml:"workers"`
	Report              *string  `toml:"report"`
	Metrics             *bool    `toml:"metrics"`
	Trajectory          *bool    `toml:"trajectory"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		PopulationSize:   bitga.DefaultPopulationSize,
		ChromosomeLength: bitga.DefaultChromosomeLength,
		Generations:      bitga.DefaultGenerations,
		PMutation:        bitga.DefaultPMutation,
		Seed:             defaultSeed,
		Report:           stats.ReportTable,
	}
}

func loadRunConfig(path string, base runConfig) (runConfig, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return runConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return runConfig{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg := base
	if fc.RunID != nil {
		cfg.RunID = *fc.RunID
	}
	if fc.PopulationSize != nil {
		cfg.PopulationSize = *fc.PopulationSize
	}
	if fc.ChromosomeLength != nil {
		cfg.ChromosomeLength = *fc.ChromosomeLength
	}
	if fc.Generations != nil {
		cfg.Generations = *fc.Generations
	}
	if fc.MutationProbability != nil {
		cfg.PMutation = *fc.MutationProbability
	}
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.Workers != nil {
		cfg.Workers = *fc.Workers
	}
	if fc.Report != nil {
		cfg.Report = *fc.Report
	}
	if fc.Metrics != nil {
		cfg.Metrics = *fc.Metrics
	}
	if fc.Trajectory != nil {
		cfg.Trajectory = *fc.Trajectory
	}
	return cfg, nil
}

// validate rejects values the facade would otherwise replace with defaults.
func (c runConfig) validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be > 0")
	}
	if c.ChromosomeLength <= 0 {
		return fmt.Errorf("chromosome length must be > 0")
	}
	if c.Generations <= 0 {
		return fmt.Errorf("generations must be > 0")
	}
	switch c.Report {
	case stats.ReportTable, stats.ReportPlain, stats.ReportNone:
	default:
		return fmt.Errorf("unsupported report format: %s", c.Report)
	}
	return nil
}

func (c runConfig) runRequest() bitga.RunRequest {
	return bitga.RunRequest{
		RunID:            c.RunID,
		PopulationSize:   c.PopulationSize,
		ChromosomeLength: c.ChromosomeLength,
		Generations:      c.Generations,
		PMutation:        c.PMutation,
		NoMutation:       c.PMutation == 0,
		Seed:             c.Seed,
		Workers:          c.Workers,
	}
}
