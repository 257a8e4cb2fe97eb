package plan

import (
	"fmt"
	"sort"
)

// CompileEdges turns per-pin rise/fall times into output steps. Each step
// holds the pin state from one edge time to the next. The trailing all-low
// state is left to the firmware, which pads programs with low outputs.
func CompileEdges(edges map[int][]float64) ([]PulseStep, error) {
	times := []float64{0}
	for pin, list := range edges {
		if pin < 0 || pin >= OutputPins {
			return nil, fmt.Errorf("pin %d out of range 0..%d", pin, OutputPins-1)
		}
		if len(list)%2 != 0 {
			return nil, fmt.Errorf("pin %d: odd number of edges", pin)
		}
		for i, t := range list {
			if t < 0 {
				return nil, fmt.Errorf("pin %d: negative edge time", pin)
			}
			if i > 0 && t <= list[i-1] {
				return nil, fmt.Errorf("pin %d: edges must be strictly increasing", pin)
			}
		}
		times = append(times, list...)
	}
	sort.Float64s(times)
	times = dedup(times)

	var steps []PulseStep
	for i := 0; i+1 < len(times); i++ {
		state := stateAt(edges, times[i])
		delay := times[i+1] - times[i]
		if n := len(steps); n > 0 && steps[n-1].Output == state {
			steps[n-1].Delay += delay
			continue
		}
		steps = append(steps, PulseStep{Output: state, Delay: delay})
	}
	if len(steps) > PulsePairsMax {
		return nil, fmt.Errorf("edges need %d steps, device holds %d", len(steps), PulsePairsMax)
	}
	return steps, nil
}

// stateAt returns the output mask with every pin high whose interval
// [rise, fall) contains t.
func stateAt(edges map[int][]float64, t float64) uint32 {
	var state uint32
	for pin, list := range edges {
		for i := 0; i+1 < len(list); i += 2 {
			if list[i] <= t && t < list[i+1] {
				state |= 1 << uint(pin)
				break
			}
		}
	}
	return state
}

func dedup(sorted []float64) []float64 {
	out := sorted[:0]
	for i, t := range sorted {
		if i == 0 || t != sorted[i-1] {
			out = append(out, t)
		}
	}
	return out
}
