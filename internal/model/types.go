package model

import (
	"fmt"
	"strconv"
	"strings"
)

// intIs64 is 1 where int is 64 bits wide and 0 where it is 32.
const intIs64 = strconv.IntSize / 64

const (
	// MaxChromosomeLength bounds L so that the reference fitness (x*x) of the
	// largest phenotype, summed over MaxPopulationSize individuals, fits an
	// int: (2^L)^2 * 2^20 < 2^(IntSize-1). That is 20 bits with a 64-bit int
	// and 5 bits with a 32-bit int.
	MaxChromosomeLength = 5 + 15*intIs64
	MaxPopulationSize   = 1 << 20
)

// Allele is a single bit of a chromosome.
type Allele uint8

const (
	Zero Allele = 0
	One  Allele = 1
)

func AlleleOf(b bool) Allele {
	if b {
		return One
	}
	return Zero
}

// Flip returns the opposite allele.
func (a Allele) Flip() Allele {
	return (a ^ 1) & 1
}

func (a Allele) Bool() bool {
	return a&1 == 1
}

func (a Allele) String() string {
	if a.Bool() {
		return "1"
	}
	return "0"
}

// Chromosome is a fixed-length allele sequence, most significant allele first.
type Chromosome []Allele

func (c Chromosome) Len() int {
	return len(c)
}

func (c Chromosome) String() string {
	var b strings.Builder
	b.Grow(len(c))
	for _, a := range c {
		if a.Bool() {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// ParseChromosome reads a big-endian bit string such as "01101".
func ParseChromosome(s string) (Chromosome, error) {
	if s == "" {
		return nil, fmt.Errorf("chromosome string is empty")
	}
	c := make(Chromosome, len(s))
	for i, r := range s {
		switch r {
		case '0':
			c[i] = Zero
		case '1':
			c[i] = One
		default:
			return nil, fmt.Errorf("invalid allele %q at position %d", r, i)
		}
	}
	return c, nil
}

func (c Chromosome) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Chromosome) UnmarshalText(text []byte) error {
	parsed, err := ParseChromosome(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Individual is one candidate solution. Phenotype and Fitness are derived from
// Chromosome by the evaluator and are only meaningful after an evaluation pass.
type Individual struct {
	Chromosome Chromosome `json:"chromosome"`
	Phenotype  int        `json:"phenotype"`
	Fitness    int        `json:"fitness"`
}

// Population is an ordered, fixed-size set of individuals plus the sum of
// their fitness values.
type Population struct {
	Individuals  []Individual `json:"individuals"`
	TotalFitness int          `json:"total_fitness"`
}

// NewPopulation allocates size individuals whose chromosomes are carved out of
// one contiguous allele slab. All alleles start at Zero.
func NewPopulation(size, length int) (*Population, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if length <= 0 {
		return nil, fmt.Errorf("chromosome length must be > 0")
	}
	if size > MaxPopulationSize {
		return nil, fmt.Errorf("population size %d exceeds limit %d", size, MaxPopulationSize)
	}
	if length > MaxChromosomeLength {
		return nil, fmt.Errorf("chromosome length %d exceeds limit %d", length, MaxChromosomeLength)
	}

	slab := make([]Allele, size*length)
	pop := &Population{Individuals: make([]Individual, size)}
	for i := range pop.Individuals {
		pop.Individuals[i].Chromosome = Chromosome(slab[i*length : (i+1)*length : (i+1)*length])
	}
	return pop, nil
}

func (p *Population) Len() int {
	return len(p.Individuals)
}

func (p *Population) ChromosomeLength() int {
	if len(p.Individuals) == 0 {
		return 0
	}
	return len(p.Individuals[0].Chromosome)
}

// Clone returns a deep copy that shares no allele storage with p.
func (p *Population) Clone() *Population {
	if p == nil {
		return nil
	}
	length := p.ChromosomeLength()
	slab := make([]Allele, len(p.Individuals)*length)
	out := &Population{
		Individuals:  make([]Individual, len(p.Individuals)),
		TotalFitness: p.TotalFitness,
	}
	for i, ind := range p.Individuals {
		chrom := Chromosome(slab[i*length : (i+1)*length : (i+1)*length])
		copy(chrom, ind.Chromosome)
		out.Individuals[i] = Individual{
			Chromosome: chrom,
			Phenotype:  ind.Phenotype,
			Fitness:    ind.Fitness,
		}
	}
	return out
}
