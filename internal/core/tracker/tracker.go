// Package tracker owns the state behind the AR dice table: the detected
// surfaces, the dice placed on them, and the rolls applied to those dice.
//
// A Tracker is not safe for concurrent use. Every method is a synchronous
// bookkeeping update that returns the render commands it implies; callers are
// expected to drive it from a single event-handling context.
package tracker

import (
	"gonum.org/v1/gonum/spatial/r3"
)

type Config struct {
	// Source draws quarter turns. Nil uses a non-reproducible generator.
	Source QuarterTurnSource
	// RollDuration is the tumble animation length in seconds.
	RollDuration float64
	// MaxObjects caps the number of placed dice. Zero means no cap.
	MaxObjects int
}

// Tracker is the placement and roll state machine.
type Tracker struct {
	surfaces   *SurfaceRegistry
	placements *PlacementRegistry
	rolls      *RollEngine
}

func New(cfg Config) *Tracker {
	return &Tracker{
		surfaces:   NewSurfaceRegistry(),
		placements: NewPlacementRegistry(cfg.MaxObjects),
		rolls:      NewRollEngine(cfg.Source, cfg.RollDuration),
	}
}

func (t *Tracker) OnSurfaceDetected(anchorID string, g Geometry) (SurfaceGridCommand, bool) {
	return t.surfaces.Detected(anchorID, g)
}

func (t *Tracker) OnSurfaceUpdated(anchorID string, g Geometry) (SurfaceGridCommand, bool) {
	return t.surfaces.Updated(anchorID, g)
}

func (t *Tracker) OnSurfaceRemoved(anchorID string) (RemoveSurfaceGridCommand, bool) {
	return t.surfaces.Removed(anchorID)
}

// PlaceObject puts a die on an already hit-tested surface point.
func (t *Tracker) PlaceObject(hit r3.Vec, halfHeight float64) (PlacedObject, SpawnCommand, error) {
	return t.placements.Place(hit, halfHeight)
}

// PlaceOnSurface is PlaceObject for a hit that names its anchor. A hit on an
// anchor the tracker does not know is a miss and places nothing.
func (t *Tracker) PlaceOnSurface(anchorID string, hit r3.Vec, halfHeight float64) (PlacedObject, SpawnCommand, bool, error) {
	if _, ok := t.surfaces.Get(anchorID); !ok {
		return PlacedObject{}, SpawnCommand{}, false, nil
	}
	obj, spawn, err := t.placements.place(anchorID, hit, halfHeight)
	if err != nil {
		return PlacedObject{}, SpawnCommand{}, false, err
	}
	return obj, spawn, true, nil
}

// RollOne draws a single roll without applying it to any object.
func (t *Tracker) RollOne() Roll {
	return t.rolls.RollOne()
}

// Roll tumbles one placed die. Unknown ids produce no command.
func (t *Tracker) Roll(objectID string) (RotateCommand, bool) {
	if _, ok := t.placements.Get(objectID); !ok {
		return RotateCommand{}, false
	}
	cmd := RotateCommand{ObjectID: objectID, Roll: t.rolls.RollOne()}
	t.placements.rotate(objectID, cmd.Roll)
	return cmd, true
}

// RollAll tumbles every placed die, in placement order.
func (t *Tracker) RollAll() []RotateCommand {
	cmds := t.rolls.RollAll(t.placements.List())
	for _, c := range cmds {
		t.placements.rotate(c.ObjectID, c.Roll)
	}
	return cmds
}

// ClearAll removes every placed die.
func (t *Tracker) ClearAll() []RemoveObjectCommand {
	return t.placements.Clear()
}

func (t *Tracker) Surfaces() *SurfaceRegistry {
	return t.surfaces
}

func (t *Tracker) Placements() *PlacementRegistry {
	return t.placements
}

// Snapshot is a copy of the tracker state.
type Snapshot struct {
	Surfaces []Surface
	Objects  []PlacedObject
}

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Surfaces: t.surfaces.List(),
		Objects:  t.placements.List(),
	}
}
