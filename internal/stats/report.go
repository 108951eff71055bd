package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	ReportTable = "table"
	ReportPlain = "plain"
	ReportNone  = "none"
)

// Reporter renders generation summaries for a human reader.
type Reporter interface {
	Report(summary GenerationSummary) error
}

func NewReporter(kind string, w io.Writer, color bool) (Reporter, error) {
	switch kind {
	case "", ReportTable:
		return &TableReporter{w: w, color: color}, nil
	case ReportPlain:
		return &PlainReporter{w: w}, nil
	case ReportNone:
		return NopReporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", kind)
	}
}

type NopReporter struct{}

func (NopReporter) Report(GenerationSummary) error {
	return nil
}

// PlainReporter prints the classic console listing.
type PlainReporter struct {
	w io.Writer
}

func (r *PlainReporter) Report(s GenerationSummary) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("-", 33))
	fmt.Fprintf(&b, "\nCurrent generation: %d\n", s.Generation)
	for i, ind := range s.Individuals {
		fmt.Fprintf(&b, "%d: %s\tPhenotype: %d\t Fitness: %d\t\n", i+1, ind.Chromosome, ind.Phenotype, ind.Fitness)
	}
	fmt.Fprintf(&b, "Maximum fitness: %d\n", s.MaxFitness)
	fmt.Fprintf(&b, "Minimum fitness: %d\n", s.MinFitness)
	fmt.Fprintf(&b, "Average fitness: %f\n", s.MeanFitness)
	fmt.Fprintf(&b, "Num mutations: %d\n", s.Mutations)
	_, err := io.WriteString(r.w, b.String())
	return err
}

// TableReporter renders one table per generation.
type TableReporter struct {
	w     io.Writer
	color bool
}

func (r *TableReporter) Report(s GenerationSummary) error {
	t := newTable(r.color)
	t.SetTitle("Generation %d", s.Generation)
	t.AppendHeader(table.Row{"#", "CHROMOSOME", "PHENOTYPE", "FITNESS"})
	for i, ind := range s.Individuals {
		t.AppendRow(table.Row{i + 1, ind.Chromosome.String(), ind.Phenotype, ind.Fitness})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"", "max", "", s.MaxFitness})
	t.AppendRow(table.Row{"", "min", "", s.MinFitness})
	t.AppendRow(table.Row{"", "mean", "", fmt.Sprintf("%.2f", s.MeanFitness)})
	t.AppendFooter(table.Row{"", "mutations", humanize.Comma(s.Mutations), ""})
	t.AppendFooter(table.Row{"", "crossovers", humanize.Comma(s.Crossovers), ""})

	_, err := io.WriteString(r.w, t.Render()+"\n")
	return err
}

// WriteTrajectory prints one row per generation: best, mean and worst fitness.
func WriteTrajectory(w io.Writer, summaries []GenerationSummary, color bool) error {
	if len(summaries) == 0 {
		return nil
	}
	t := newTable(color)
	t.SetTitle("Run %s", summaries[0].RunID)
	t.AppendHeader(table.Row{"GEN", "BEST", "MEAN", "MIN", "STDDEV", "MUTATIONS", "BEST CHROMOSOME"})
	for _, s := range summaries {
		best := ""
		if ind, ok := s.BestIndividual(); ok {
			best = ind.Chromosome.String()
		}
		t.AppendRow(table.Row{
			s.Generation,
			s.MaxFitness,
			fmt.Sprintf("%.2f", s.MeanFitness),
			s.MinFitness,
			fmt.Sprintf("%.2f", s.StdDevFitness),
			humanize.Comma(s.Mutations),
			best,
		})
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

func newTable(color bool) table.Writer {
	t := table.NewWriter()
	if color {
		t.SetStyle(table.StyleColoredBright)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return t
}
