package tracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validAngles = []float64{math.Pi / 2, math.Pi, 3 * math.Pi / 2, 2 * math.Pi}

func assertQuarterTurn(t *testing.T, angle float64) {
	t.Helper()
	for _, v := range validAngles {
		if math.Abs(v-angle) < 1e-12 {
			return
		}
	}
	t.Errorf("angle %v is not a whole number of quarter turns in [1, 4]", angle)
}

func TestRollOneAnglesAndDuration(t *testing.T) {
	e := NewRollEngine(nil, 0)

	for i := 0; i < 500; i++ {
		r := e.RollOne()
		assertQuarterTurn(t, r.AngleX)
		assertQuarterTurn(t, r.AngleZ)
		assert.Equal(t, 0.5, r.Duration)
	}
}

func TestRollOneUsesSourceInOrder(t *testing.T) {
	e := NewRollEngine(NewSequenceSource(1, 4, 2, 3), DefaultRollDuration)

	first := e.RollOne()
	second := e.RollOne()

	assert.InDelta(t, math.Pi/2, first.AngleX, 1e-12)
	assert.InDelta(t, 2*math.Pi, first.AngleZ, 1e-12)
	assert.InDelta(t, math.Pi, second.AngleX, 1e-12)
	assert.InDelta(t, 3*math.Pi/2, second.AngleZ, 1e-12)
	assert.Equal(t, 0.5, second.Duration)
}

func TestRollAllOnePerObject(t *testing.T) {
	e := NewRollEngine(NewSequenceSource(2), 1.5)
	objects := []PlacedObject{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	cmds := e.RollAll(objects)
	require.Len(t, cmds, 3)
	for i, c := range cmds {
		assert.Equal(t, objects[i].ID, c.ObjectID)
		assert.Equal(t, CommandRotateObject, c.Kind())
		assert.InDelta(t, math.Pi, c.AngleX, 1e-12)
		assert.Equal(t, 1.5, c.Duration)
	}

	assert.Empty(t, e.RollAll(nil))
}

func TestSeededSourceIsReproducible(t *testing.T) {
	a := NewSeededSource("table-7")
	b := NewSeededSource("table-7")

	for i := 0; i < 64; i++ {
		v := a.QuarterTurns()
		assert.Equal(t, v, b.QuarterTurns())
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 4)
	}
}

func TestSequenceSourceWrapsOutOfRange(t *testing.T) {
	s := NewSequenceSource(0, 5, -1, 8)
	assert.Equal(t, []int{4, 1, 3, 4}, []int{s.QuarterTurns(), s.QuarterTurns(), s.QuarterTurns(), s.QuarterTurns()})
}
