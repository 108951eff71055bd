package evo

import "errors"

var (
	// ErrInvalidConfig reports a configuration that cannot start a run.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrAllocation reports population storage that cannot be created.
	ErrAllocation = errors.New("population allocation failed")
	// ErrNegativeFitness reports a fitness function that produced a value the
	// roulette wheel cannot weigh.
	ErrNegativeFitness = errors.New("negative fitness")
	ErrNotInitialized  = errors.New("loop not initialized")
)
