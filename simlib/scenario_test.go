package simlib

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomScenario(t *testing.T) {

	cfg := ScenarioConfig{
		MaxSources: 6,
		MaxStates:  4,
		MaxRate:    0.5,
		Steps:      400,
		Jitter:     5,
	}

	data, starts, err := RandomScenario(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(data), 2)
	require.LessOrEqual(t, len(data), 6)
	require.GreaterOrEqual(t, len(starts), 1)
	require.LessOrEqual(t, len(starts), 4)

	for n := range data {
		require.Len(t, data[n], 400)
		for tm, v := range data[n] {
			require.Contains(t, []int{0, 1}, v, "source %d, step %d", n, tm)
		}
	}

	// The schedule is sorted, begins at zero, and respects the default
	// minimum state duration (Steps/20).
	require.Equal(t, 0, starts[0])
	for i := 0; i+1 < len(starts); i++ {
		require.GreaterOrEqual(t, starts[i+1]-starts[i], 20)
	}
	for _, st := range starts {
		require.Less(t, st, 400)
	}
}

func TestRandomScenarioReproducible(t *testing.T) {

	cfg := ScenarioConfig{
		MaxSources: 8,
		MaxStates:  5,
		MaxRate:    0.3,
		Steps:      250,
		Jitter:     4,
	}

	d1, s1, err := RandomScenario(cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	d2, s2, err := RandomScenario(cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	require.Equal(t, s1, s2)
	require.Equal(t, d1, d2)
}

func TestRandomScenarioCategorical(t *testing.T) {

	cfg := ScenarioConfig{
		MaxSources:  10,
		MaxStates:   3,
		MaxRate:     0.9,
		Steps:       300,
		Categorical: true,
	}

	data, _, err := RandomScenario(cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	for tm := 0; tm < 300; tm++ {
		active := 0
		for n := range data {
			active += data[n][tm]
		}
		require.LessOrEqual(t, active, 1, "step %d", tm)
	}
}

func TestRandomScenarioConfigValidation(t *testing.T) {

	rnd := rand.New(rand.NewSource(1))

	_, _, err := RandomScenario(ScenarioConfig{MaxSources: 1, MaxStates: 3, Steps: 100}, rnd)
	require.Error(t, err)

	_, _, err = RandomScenario(ScenarioConfig{MaxSources: 4, MaxStates: 0, Steps: 100}, rnd)
	require.Error(t, err)

	_, _, err = RandomScenario(ScenarioConfig{MaxSources: 4, MaxStates: 3, Steps: 0}, rnd)
	require.Error(t, err)
}

func TestRandomScenarioUnsatisfiable(t *testing.T) {

	// A minimum duration longer than half the timeline can never be
	// honored.
	cfg := ScenarioConfig{
		MaxSources:       4,
		MaxStates:        3,
		MaxRate:          0.5,
		Steps:            100,
		MinStateDuration: 60,
	}

	_, _, err := RandomScenario(cfg, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrUnsatisfiable)
}

func TestRandomScheduleSpacing(t *testing.T) {

	rnd := rand.New(rand.NewSource(9))

	for trial := 0; trial < 50; trial++ {
		starts, err := randomSchedule(4, 500, 50, rnd)
		require.NoError(t, err)
		require.Len(t, starts, 4)
		require.Equal(t, 0, starts[0])
		for i := 0; i+1 < len(starts); i++ {
			require.GreaterOrEqual(t, starts[i+1]-starts[i], 50, "trial %d", trial)
		}
		for _, st := range starts {
			require.Less(t, st, 500)
		}
	}
}
