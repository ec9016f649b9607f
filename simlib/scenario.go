package simlib

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// ErrUnsatisfiable indicates that a randomized schedule satisfying the
// minimum state duration could not be found within the retry budget.
var ErrUnsatisfiable = errors.New("simlib: scenario constraints unsatisfiable")

// Maximum number of whole-schedule redraws before giving up.
const maxScheduleTries = 1000

// ScenarioConfig holds the size parameters for a randomized scenario.
type ScenarioConfig struct {

	// Maximum number of sources; the actual count is uniform in
	// [2, MaxSources].
	MaxSources int

	// Maximum number of states; the actual count is uniform in
	// [1, MaxStates].
	MaxStates int

	// Each source's firing probability in each state is uniform in
	// [0, MaxRate).
	MaxRate float64

	// Number of time steps to generate.
	Steps int

	// Minimum number of steps a single state can occupy.  Zero means
	// Steps/20.
	MinStateDuration int

	// Jitter applied to every source (see Dataset).
	Jitter int

	// When true the generated data is categorical.
	Categorical bool
}

// RandomScenario instantiates a random Dataset per the config and
// generates data from a random non-degenerate state schedule.  It returns
// the activation matrix and the schedule it was generated from.  Every
// call is independent; nothing is cached.  rnd may be nil, in which case
// a time-seeded generator is used.
func RandomScenario(cfg ScenarioConfig, rnd *rand.Rand) ([][]int, []int, error) {

	if cfg.MaxSources < 2 {
		return nil, nil, fmt.Errorf("simlib: MaxSources must be at least 2, got %d", cfg.MaxSources)
	}
	if cfg.MaxStates < 1 {
		return nil, nil, fmt.Errorf("simlib: MaxStates must be at least 1, got %d", cfg.MaxStates)
	}
	if cfg.Steps <= 0 {
		return nil, nil, fmt.Errorf("simlib: Steps must be positive, got %d", cfg.Steps)
	}

	minDur := cfg.MinStateDuration
	if minDur == 0 {
		minDur = cfg.Steps / 20
	}
	if minDur < 0 || cfg.Steps-minDur < minDur {
		return nil, nil, fmt.Errorf("%w: minimum state duration %d does not fit in %d steps",
			ErrUnsatisfiable, minDur, cfg.Steps)
	}

	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	}

	numSources := 2 + rnd.Intn(cfg.MaxSources-1)
	numStates := 1 + rnd.Intn(cfg.MaxStates)

	emitters := make([]Emitter, numSources)
	for i := range emitters {
		rates := make([]float64, numStates)
		for s := range rates {
			rates[s] = rnd.Float64() * cfg.MaxRate
		}
		emitters[i] = Emitter{Rates: FixedRates(rates...)}
	}

	starts, err := randomSchedule(numStates, cfg.Steps, minDur, rnd)
	if err != nil {
		return nil, nil, err
	}

	ds := NewDataset(emitters, cfg.Jitter, rand.NewSource(rnd.Int63()))
	data, err := ds.Generate(cfg.Steps, starts, cfg.Categorical, false)
	if err != nil {
		return nil, nil, err
	}

	return data, starts, nil
}

// randomSchedule draws the state start times: state 0 at step 0, the rest
// uniform over [minDur, steps-minDur], sorted.  The whole draw is redrawn
// while any two consecutive starts are closer than minDur apart.
func randomSchedule(numStates, steps, minDur int, rnd *rand.Rand) ([]int, error) {

	span := steps - 2*minDur + 1
	if minDur+span > steps { // keep draws inside the timeline
		span = steps - minDur
	}

	for try := 0; try < maxScheduleTries; try++ {
		starts := make([]int, numStates)
		for i := 1; i < numStates; i++ {
			starts[i] = minDur + rnd.Intn(span)
		}
		sort.Ints(starts)

		ok := true
		for i := 0; i+1 < len(starts); i++ {
			if starts[i+1]-starts[i] < minDur {
				ok = false
				break
			}
		}
		if ok {
			return starts, nil
		}
	}

	return nil, fmt.Errorf("%w: no valid schedule after %d draws (%d states, %d steps, minimum duration %d)",
		ErrUnsatisfiable, maxScheduleTries, numStates, steps, minDur)
}
