package problem

import (
	"fmt"
	"math/rand"
	"strings"

	"evolver/internal/evo"
	"evolver/internal/model"
)

const (
	OneMaxName    = "onemax"
	TrapName      = "trap"
	SphereName    = "sphere"
	RastriginName = "rastrigin"
	KnapsackName  = "knapsack"
	FlowShopName  = "flowshop"

	trapWidth        = 4
	flowShopMachines = 5
)

func registerBuiltins() {
	for _, p := range []Problem{
		&Benchmark[bool]{
			Key:              OneMaxName,
			Summary:          "maximize the number of set bits",
			DefaultLength:    64,
			DefaultCrossover: evo.CrossoverUniform,
			Seed: func(rng *rand.Rand, req Request) []model.Genome[bool] {
				return seed(req.Size, func() model.Genome[bool] {
					return &BitString{Bits: randomBits(rng, req.Length), Score: OneMax}
				})
			},
		},
		&Benchmark[bool]{
			Key:              TrapName,
			Summary:          fmt.Sprintf("concatenated deceptive traps of width %d", trapWidth),
			DefaultLength:    40,
			DefaultCrossover: evo.CrossoverTwoPoint,
			Compatible: func(req Request) error {
				if req.Length%trapWidth != 0 {
					return fmt.Errorf("length %d is not a multiple of %d", req.Length, trapWidth)
				}
				return nil
			},
			Seed: func(rng *rand.Rand, req Request) []model.Genome[bool] {
				return seed(req.Size, func() model.Genome[bool] {
					return &BitString{Bits: randomBits(rng, req.Length), Score: Trap(trapWidth)}
				})
			},
		},
		&Benchmark[float64]{
			Key:              SphereName,
			Summary:          "minimize the sum of squares on [-5.12, 5.12]^n",
			DefaultLength:    10,
			DefaultCrossover: evo.CrossoverUniform,
			Seed:             vectorSeed(Sphere),
		},
		&Benchmark[float64]{
			Key:              RastriginName,
			Summary:          "minimize the multimodal Rastrigin function on [-5.12, 5.12]^n",
			DefaultLength:    10,
			DefaultCrossover: evo.CrossoverUniform,
			Seed:             vectorSeed(Rastrigin),
		},
		&Benchmark[bool]{
			Key:              KnapsackName,
			Summary:          "0/1 knapsack over random items, capacity 40% of total weight",
			DefaultLength:    50,
			DefaultCrossover: evo.CrossoverUniform,
			Seed: func(rng *rand.Rand, req Request) []model.Genome[bool] {
				items, capacity := randomItems(rng, req.Length)
				return seed(req.Size, func() model.Genome[bool] {
					g := &Knapsack{Take: randomBits(rng, req.Length), Items: items, Capacity: capacity}
					_ = g.Repair()
					return g
				})
			},
		},
		&Benchmark[int]{
			Key:              FlowShopName,
			Summary:          fmt.Sprintf("permutation flow shop with %d machines, minimize makespan", flowShopMachines),
			DefaultLength:    20,
			DefaultCrossover: evo.CrossoverOrder,
			Compatible:       requireOrderCrossover,
			Seed: func(rng *rand.Rand, req Request) []model.Genome[int] {
				shop := RandomFlowShop(rng, req.Length, flowShopMachines, 1, 99)
				return seed(req.Size, func() model.Genome[int] {
					return &Schedule{Order: rng.Perm(req.Length), Shop: shop}
				})
			},
		},
	} {
		if err := Register(p); err != nil {
			panic(err)
		}
	}
}

func seed[G any](n int, next func() model.Genome[G]) []model.Genome[G] {
	out := make([]model.Genome[G], 0, n)
	for i := 0; i < n; i++ {
		out = append(out, next())
	}
	return out
}

func vectorSeed(cost func([]float64) float64) func(rng *rand.Rand, req Request) []model.Genome[float64] {
	return func(rng *rand.Rand, req Request) []model.Genome[float64] {
		return seed(req.Size, func() model.Genome[float64] {
			values := make([]float64, req.Length)
			for i := range values {
				values[i] = rng.Float64()*10.24 - 5.12
			}
			return &RealVector{Values: values, Lower: -5.12, Upper: 5.12, Sigma: 0.3, Cost: cost}
		})
	}
}

func randomItems(rng *rand.Rand, n int) ([]Item, float64) {
	items := make([]Item, n)
	total := 0.0
	for i := range items {
		items[i] = Item{Weight: float64(1 + rng.Intn(20)), Value: float64(1 + rng.Intn(30))}
		total += items[i].Weight
	}
	return items, 0.4 * total
}

// requireOrderCrossover keeps permutation genomes away from crossovers that
// would duplicate jobs.
func requireOrderCrossover(req Request) error {
	for _, spec := range req.Crossover.Operators {
		c, err := evo.CrossoverFromConfig[int](spec)
		if err != nil {
			return err
		}
		if c.Name() != evo.CrossoverOrder {
			return fmt.Errorf("crossover %s does not preserve permutations (use %s)", strings.ToLower(spec.Name), evo.CrossoverOrder)
		}
	}
	return nil
}
