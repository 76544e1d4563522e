package problem

import (
	"fmt"
	"math/rand"
)

// FlowShop is a permutation flow shop instance: every job visits the machines
// in the same order.
type FlowShop struct {
	Jobs     int
	Machines int
	// Times is row-major by job, len Jobs*Machines.
	Times []int
}

// RandomFlowShop draws processing times uniformly from [minTime, maxTime].
func RandomFlowShop(rng *rand.Rand, jobs, machines, minTime, maxTime int) *FlowShop {
	times := make([]int, jobs*machines)
	span := maxTime - minTime + 1
	for i := range times {
		times[i] = minTime
		if span > 1 {
			times[i] += rng.Intn(span)
		}
	}
	return &FlowShop{Jobs: jobs, Machines: machines, Times: times}
}

func (f *FlowShop) Time(job, machine int) int {
	return f.Times[job*f.Machines+machine]
}

// Makespan is the completion time of the last job on the last machine.
func (f *FlowShop) Makespan(order []int) (int, error) {
	if len(order) != f.Jobs {
		return 0, fmt.Errorf("permutation length must be %d (got %d)", f.Jobs, len(order))
	}
	seen := make([]bool, f.Jobs)
	for _, job := range order {
		if job < 0 || job >= f.Jobs || seen[job] {
			return 0, fmt.Errorf("invalid permutation %v", order)
		}
		seen[job] = true
	}

	done := make([]int, f.Machines)
	for _, job := range order {
		done[0] += f.Time(job, 0)
		for m := 1; m < f.Machines; m++ {
			done[m] = max(done[m], done[m-1]) + f.Time(job, m)
		}
	}
	return done[f.Machines-1], nil
}
