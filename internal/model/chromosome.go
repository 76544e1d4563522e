package model

import (
	"fmt"
	"math/rand"
	"slices"
)

// Genome is the problem-specific part of a candidate solution. Callers own its
// genes and behaviour; the engine only calls these methods.
type Genome[G any] interface {
	// Genes returns the current gene sequence. Callers must not retain it
	// across SetGenes calls.
	Genes() []G
	// SetGenes replaces the gene sequence, used when crossover builds offspring.
	SetGenes(genes []G)
	// ComputeFitness must be pure for fixed genes and must not touch state
	// shared with other genomes; it may run concurrently.
	ComputeFitness() (float64, error)
	Mutate(rng *rand.Rand) error
	Repair() error
	DeepCopy() Genome[G]
}

// NoRepair can be embedded by genomes that need no repair step.
type NoRepair struct{}

func (NoRepair) Repair() error { return nil }

// Chromosome wraps a Genome with the bookkeeping the engine owns: identity,
// age, birth epoch and a cached fitness invalidated on every gene change.
type Chromosome[G any] struct {
	id      string
	genome  Genome[G]
	fitness Cached[float64]
	age     int
	born    int
}

func NewChromosome[G any](id string, genome Genome[G], epoch int) *Chromosome[G] {
	return &Chromosome[G]{id: id, genome: genome, born: epoch}
}

func (c *Chromosome[G]) ID() string        { return c.id }
func (c *Chromosome[G]) Genome() Genome[G] { return c.genome }
func (c *Chromosome[G]) Genes() []G        { return c.genome.Genes() }
func (c *Chromosome[G]) Age() int          { return c.age }
func (c *Chromosome[G]) Born() int         { return c.born }

// Fitness returns the cached fitness, computing it on first read after an
// invalidation.
func (c *Chromosome[G]) Fitness() (float64, error) {
	return c.fitness.Get(func() (float64, error) {
		f, err := c.genome.ComputeFitness()
		if err != nil {
			return 0, fmt.Errorf("compute fitness of %s: %w", c.id, err)
		}
		return f, nil
	})
}

// CachedFitness returns the last computed fitness. It is only meaningful for
// chromosomes that were evaluated, which every population member is.
func (c *Chromosome[G]) CachedFitness() float64 {
	v, _ := c.fitness.Peek()
	return v
}

func (c *Chromosome[G]) Evaluated() bool {
	return c.fitness.Valid()
}

func (c *Chromosome[G]) SetGenes(genes []G) {
	c.genome.SetGenes(genes)
	c.fitness.Invalidate()
}

func (c *Chromosome[G]) Mutate(rng *rand.Rand) error {
	c.fitness.Invalidate()
	if err := c.genome.Mutate(rng); err != nil {
		return fmt.Errorf("mutate %s: %w", c.id, err)
	}
	return nil
}

func (c *Chromosome[G]) Repair() error {
	c.fitness.Invalidate()
	if err := c.genome.Repair(); err != nil {
		return fmt.Errorf("repair %s: %w", c.id, err)
	}
	return nil
}

func (c *Chromosome[G]) IncrementAge() { c.age++ }

// Offspring deep-copies the genome under a fresh identity with age 0. genes
// is copied too, so a crossover may hand back a parent's own slice.
func (c *Chromosome[G]) Offspring(id string, genes []G, epoch int) *Chromosome[G] {
	genome := c.genome.DeepCopy()
	genome.SetGenes(slices.Clone(genes))
	return &Chromosome[G]{id: id, genome: genome, born: epoch}
}

// Clone deep-copies the chromosome keeping identity, age and cached fitness.
func (c *Chromosome[G]) Clone() *Chromosome[G] {
	return &Chromosome[G]{
		id:      c.id,
		genome:  c.genome.DeepCopy(),
		fitness: c.fitness,
		age:     c.age,
		born:    c.born,
	}
}
