package evo

import (
	"fmt"

	"bitga/internal/model"
)

// FitnessFunc maps a phenotype to the score being maximized.
type FitnessFunc func(phenotype int) int

// Square is the reference objective f(x) = x^2.
func Square(x int) int {
	return x * x
}

// Decode reads a chromosome as a big-endian unsigned binary number.
func Decode(c model.Chromosome) int {
	value := 0
	for _, a := range c {
		value = value<<1 | int(a&1)
	}
	return value
}

// Encode is the inverse of Decode for values in [0, 2^length-1].
func Encode(value, length int) (model.Chromosome, error) {
	if length <= 0 || length > model.MaxChromosomeLength {
		return nil, fmt.Errorf("chromosome length must be in [1, %d]", model.MaxChromosomeLength)
	}
	if value < 0 || value >= 1<<length {
		return nil, fmt.Errorf("value %d does not fit in %d alleles", value, length)
	}
	c := make(model.Chromosome, length)
	for i := length - 1; i >= 0; i-- {
		c[i] = model.Allele(value & 1)
		value >>= 1
	}
	return c, nil
}

// Evaluator recomputes the derived fields of every individual.
type Evaluator struct {
	fitness FitnessFunc
	scratch []int
}

func NewEvaluator(fn FitnessFunc) *Evaluator {
	if fn == nil {
		fn = Square
	}
	return &Evaluator{fitness: fn}
}

func (e *Evaluator) Fitness(phenotype int) int {
	return e.fitness(phenotype)
}

// Evaluate sets phenotype and fitness of every individual and the population
// total. Nothing is written unless every individual scores successfully.
func (e *Evaluator) Evaluate(pop *model.Population) error {
	if pop == nil {
		return fmt.Errorf("population is required")
	}
	n := len(pop.Individuals)
	if cap(e.scratch) < 2*n {
		e.scratch = make([]int, 2*n)
	}
	phenotypes := e.scratch[:n]
	fitnesses := e.scratch[n : 2*n]

	total := 0
	for i, ind := range pop.Individuals {
		phenotype := Decode(ind.Chromosome)
		fitness := e.fitness(phenotype)
		if fitness < 0 {
			return fmt.Errorf("%w: individual %d phenotype %d scored %d", ErrNegativeFitness, i, phenotype, fitness)
		}
		phenotypes[i] = phenotype
		fitnesses[i] = fitness
		total += fitness
	}

	for i := range pop.Individuals {
		pop.Individuals[i].Phenotype = phenotypes[i]
		pop.Individuals[i].Fitness = fitnesses[i]
	}
	pop.TotalFitness = total
	return nil
}
