// Package simlib synthesizes labeled spike-train data.  A timeline is
// divided into states, and each simulated source fires independently at
// each time step with a probability determined by the current state.
// True state boundaries may be perturbed per source ("wiggle") to model
// imprecise transition timing.
package simlib

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"
)

// ErrInvalidSchedule indicates a state-start schedule that does not cover
// time zero or extends past the end of the timeline.
var ErrInvalidSchedule = errors.New("simlib: invalid state schedule")

// Maximum number of draws when searching for an in-bounds boundary offset.
// After this many rejections the nominal boundary is kept.
const maxJitterTries = 100

// Emitter is one simulated signal source, defined by its firing
// probabilities in each state.
type Emitter struct {

	// Rates[s] holds the candidate firing probabilities for state s.
	// A one-element set is a fixed rate; when more than one candidate is
	// present, one is drawn uniformly per generation call.
	Rates [][]float64

	// Jitter is the maximum offset in steps from the true state change
	// step.  Zero means the emitter inherits the dataset default.
	Jitter int
}

// FixedRates builds the common single-candidate rate form, one fixed
// firing probability per state.
func FixedRates(rates ...float64) [][]float64 {
	rr := make([][]float64, len(rates))
	for i, r := range rates {
		rr[i] = []float64{r}
	}
	return rr
}

// rate returns the firing probability for the given state, drawing
// uniformly among candidates when more than one is configured.
func (e *Emitter) rate(state int, rnd *rand.Rand) float64 {
	c := e.Rates[state]
	if len(c) == 1 {
		return c[0]
	}
	return c[rnd.Intn(len(c))]
}

// Dataset owns a collection of emitters and generates binary activation
// matrices from a state schedule.
type Dataset struct {
	emitters []Emitter
	jitter   []int // per-source, resolved at construction time
	rnd      *rand.Rand

	// Saved holds a copy of the activation matrix from the most recent
	// Generate call made with save=true.  A single mutable field,
	// overwritten wholesale; not safe for concurrent writers.
	Saved [][]int

	msglogger *log.Logger
}

// NewDataset returns a Dataset over the given emitters.  jitter is a
// shared default applied to emitters that do not carry their own; an
// emitter's explicit jitter always wins.  The emitters themselves are
// never mutated.  src may be nil, in which case a time-seeded source is
// used.
func NewDataset(emitters []Emitter, jitter int, src rand.Source) *Dataset {

	if src == nil {
		src = rand.NewSource(time.Now().UTC().UnixNano())
	}

	jit := make([]int, len(emitters))
	for i := range emitters {
		if emitters[i].Jitter != 0 {
			jit[i] = emitters[i].Jitter
		} else {
			jit[i] = jitter
		}
	}

	em := make([]Emitter, len(emitters))
	copy(em, emitters)

	return &Dataset{
		emitters:  em,
		jitter:    jit,
		rnd:       rand.New(src),
		msglogger: log.New(os.Stderr, "", log.Ltime),
	}
}

// SetLogger provides a logger that will be used to write logging messages.
func (ds *Dataset) SetLogger(logger *log.Logger) {
	ds.msglogger = logger
}

// NumSources returns the number of emitters in the dataset.
func (ds *Dataset) NumSources() int {
	return len(ds.emitters)
}

// NumStates returns the number of states the emitters are defined over.
func (ds *Dataset) NumStates() int {
	if len(ds.emitters) == 0 {
		return 0
	}
	return len(ds.emitters[0].Rates)
}

// Generate produces 'steps' time steps of activation data for every
// source.  stateStarts[s] is the step at which state s begins: at least
// one state must begin at step 0 and every start must precede the end of
// the timeline.  When categorical is true, at most one source is active
// per time step.  When save is true a copy of the result is retained on
// Saved.  The returned matrix has one row per source, values in {0, 1}.
func (ds *Dataset) Generate(steps int, stateStarts []int, categorical, save bool) ([][]int, error) {

	if err := validateSchedule(steps, stateStarts); err != nil {
		return nil, err
	}
	for i := range ds.emitters {
		if len(ds.emitters[i].Rates) != len(stateStarts) {
			return nil, fmt.Errorf("%w: emitter %d defines %d state rates, schedule has %d states",
				ErrInvalidSchedule, i, len(ds.emitters[i].Rates), len(stateStarts))
		}
	}

	states, stops := visitOrder(steps, stateStarts)
	data := makeIntArray(len(ds.emitters), steps)

	for n := range ds.emitters {
		start := 0
		for k, state := range states {
			p := ds.emitters[n].rate(state, ds.rnd)
			stop := stops[k]
			if stop != steps { // not last stop
				stop = ds.jitterBoundary(n, start, stop, steps)
			}
			for t := start; t < stop; t++ {
				if ds.rnd.Float64() < p {
					data[n][t] = 1
				}
			}
			start = stop
		}
	}

	if categorical {
		ds.collapse(data, steps)
	}

	if save {
		saved := makeIntArray(len(data), steps)
		for i := range data {
			copy(saved[i], data[i])
		}
		ds.Saved = saved
	}

	return data, nil
}

// jitterBoundary shifts the stop boundary for source n by an offset drawn
// from a zero-mean normal scaled by the source's jitter.  The shifted
// boundary must stay strictly inside (start, steps); after maxJitterTries
// rejected draws the nominal boundary is kept, so a degenerate schedule
// cannot stall generation.
func (ds *Dataset) jitterBoundary(n, start, stop, steps int) int {

	for try := 0; try < maxJitterTries; try++ {
		offset := int(ds.rnd.NormFloat64() * 0.3 * float64(ds.jitter[n]))
		if s := stop + offset; start < s && s < steps {
			return s
		}
	}

	ds.msglogger.Printf("source %d: no valid offset for boundary at step %d, keeping nominal", n, stop)
	return stop
}

// collapse enforces at most one active source per time step, keeping one
// firing source chosen uniformly at random.
func (ds *Dataset) collapse(data [][]int, steps int) {

	fires := make([]int, 0, len(data))
	for t := 0; t < steps; t++ {
		fires = fires[:0]
		for n := range data {
			if data[n][t] == 1 {
				fires = append(fires, n)
			}
		}
		if len(fires) < 2 {
			continue
		}
		keep := fires[ds.rnd.Intn(len(fires))]
		for _, n := range fires {
			if n != keep {
				data[n][t] = 0
			}
		}
	}
}

// StateLabels returns the nominal state label at every time step of the
// given schedule, ignoring jitter.  This is the ground-truth sequence to
// compare reconstructed state assignments against.
func StateLabels(steps int, stateStarts []int) ([]int, error) {

	if err := validateSchedule(steps, stateStarts); err != nil {
		return nil, err
	}

	states, stops := visitOrder(steps, stateStarts)
	labels := make([]int, steps)

	start := 0
	for k, state := range states {
		for t := start; t < stops[k]; t++ {
			labels[t] = state
		}
		start = stops[k]
	}

	return labels, nil
}

func validateSchedule(steps int, stateStarts []int) error {

	if steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidSchedule, steps)
	}
	if len(stateStarts) == 0 {
		return fmt.Errorf("%w: no state start times", ErrInvalidSchedule)
	}

	zero := false
	for _, st := range stateStarts {
		if st < 0 || st >= steps {
			return fmt.Errorf("%w: start time %d outside [0, %d)", ErrInvalidSchedule, st, steps)
		}
		if st == 0 {
			zero = true
		}
	}
	if !zero {
		return fmt.Errorf("%w: no state starts at step 0", ErrInvalidSchedule)
	}

	return nil
}

// visitOrder returns the states in order of occurrence along with each
// state's nominal stop boundary.  State ids are positions in stateStarts;
// equal start times are visited in id order.  The final stop is always
// 'steps'.
func visitOrder(steps int, stateStarts []int) (states, stops []int) {

	states = make([]int, len(stateStarts))
	for i := range states {
		states[i] = i
	}
	sort.SliceStable(states, func(i, j int) bool {
		return stateStarts[states[i]] < stateStarts[states[j]]
	})

	stops = make([]int, len(states))
	for i := 0; i < len(states)-1; i++ {
		stops[i] = stateStarts[states[i+1]]
	}
	stops[len(states)-1] = steps

	return states, stops
}

// makeIntArray makes a collection of r slices
// of length c, packed contiguously.
func makeIntArray(r, c int) [][]int {

	bka := make([]int, r*c)
	x := make([][]int, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}
