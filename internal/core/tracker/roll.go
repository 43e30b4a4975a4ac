package tracker

import (
	"math/rand/v2"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/zeusync/ardice/internal/core/spatial"
)

// DefaultRollDuration is how long one tumble animation lasts, in seconds.
const DefaultRollDuration = 0.5

// QuarterTurnSource yields uniform integers in [1, 4].
type QuarterTurnSource interface {
	QuarterTurns() int
}

// Roll is one tumble: a rotation about x and z, never about the vertical axis.
type Roll struct {
	AngleX   float64
	AngleZ   float64
	Duration float64
}

// RollEngine turns quarter-turn draws into rotation commands.
type RollEngine struct {
	source   QuarterTurnSource
	duration float64
}

// NewRollEngine builds an engine. A nil source draws from the global generator;
// a non-positive duration falls back to DefaultRollDuration.
func NewRollEngine(source QuarterTurnSource, duration float64) *RollEngine {
	if source == nil {
		source = NewRandomSource()
	}
	if duration <= 0 || !spatial.FiniteScalar(duration) {
		duration = DefaultRollDuration
	}
	return &RollEngine{source: source, duration: duration}
}

// RollOne draws two independent quarter-turn counts and converts them to radians.
func (e *RollEngine) RollOne() Roll {
	x := e.source.QuarterTurns()
	z := e.source.QuarterTurns()
	return Roll{
		AngleX:   spatial.QuarterTurns(x),
		AngleZ:   spatial.QuarterTurns(z),
		Duration: e.duration,
	}
}

// RollAll produces one rotate command per placed object, in placement order.
func (e *RollEngine) RollAll(objects []PlacedObject) []RotateCommand {
	if len(objects) == 0 {
		return nil
	}
	out := make([]RotateCommand, len(objects))
	for i, o := range objects {
		out[i] = RotateCommand{ObjectID: o.ID, Roll: e.RollOne()}
	}
	return out
}

type randomSource struct{}

// NewRandomSource draws from the process-wide generator. Results are not reproducible.
func NewRandomSource() QuarterTurnSource {
	return randomSource{}
}

func (randomSource) QuarterTurns() int {
	return rand.IntN(4) + 1
}

type seededSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededSource returns a reproducible source: the same seed always yields the
// same sequence of rolls.
func NewSeededSource(seed string) QuarterTurnSource {
	h := xxhash.Sum64String(seed)
	return &seededSource{rnd: rand.New(rand.NewPCG(h, h^0x9e3779b97f4a7c15))}
}

func (s *seededSource) QuarterTurns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(4) + 1
}

// SequenceSource replays fixed turn counts in a loop. Values outside [1, 4] are
// wrapped into range.
type SequenceSource struct {
	values []int
	next   int
}

func NewSequenceSource(values ...int) *SequenceSource {
	if len(values) == 0 {
		values = []int{1}
	}
	return &SequenceSource{values: values}
}

func (s *SequenceSource) QuarterTurns() int {
	v := s.values[s.next%len(s.values)]
	s.next++
	return ((v-1)%4+4)%4 + 1
}
