package tracker

import (
	"github.com/google/uuid"
	"github.com/zeusync/ardice/internal/core/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// Orientation is the accumulated x/z rotation of a die in radians. The renderer
// owns the real transform; this is kept for debugging and tests.
type Orientation struct {
	X float64
	Z float64
}

// PlacedObject is one die in the scene.
type PlacedObject struct {
	ID          string
	SurfaceID   string
	Position    r3.Vec
	HalfHeight  float64
	Orientation Orientation
}

// PlacementRegistry keeps placed objects in placement order.
type PlacementRegistry struct {
	objects []*PlacedObject
	index   map[string]int
	limit   int
	newID   func() string
}

// NewPlacementRegistry returns an empty registry. limit <= 0 means unbounded.
func NewPlacementRegistry(limit int) *PlacementRegistry {
	return &PlacementRegistry{
		index: make(map[string]int),
		limit: limit,
		newID: uuid.NewString,
	}
}

// Place records a die resting on the surface point hit, lifted by halfHeight so
// it does not intersect the plane.
func (r *PlacementRegistry) Place(hit r3.Vec, halfHeight float64) (PlacedObject, SpawnCommand, error) {
	return r.place("", hit, halfHeight)
}

func (r *PlacementRegistry) place(surfaceID string, hit r3.Vec, halfHeight float64) (PlacedObject, SpawnCommand, error) {
	if !spatial.Finite(hit) || !spatial.FiniteScalar(halfHeight) || halfHeight < 0 {
		return PlacedObject{}, SpawnCommand{}, ErrInvalidPlacement
	}
	if r.limit > 0 && len(r.objects) >= r.limit {
		return PlacedObject{}, SpawnCommand{}, ErrRegistryFull
	}

	id := r.newID()
	for _, taken := r.index[id]; taken; _, taken = r.index[id] {
		id = r.newID()
	}

	obj := &PlacedObject{
		ID:         id,
		SurfaceID:  surfaceID,
		Position:   spatial.Lift(hit, halfHeight),
		HalfHeight: halfHeight,
	}
	r.index[id] = len(r.objects)
	r.objects = append(r.objects, obj)

	return *obj, SpawnCommand{ObjectID: id, Position: obj.Position}, nil
}

func (r *PlacementRegistry) Get(id string) (PlacedObject, bool) {
	i, ok := r.index[id]
	if !ok {
		return PlacedObject{}, false
	}
	return *r.objects[i], true
}

func (r *PlacementRegistry) Len() int {
	return len(r.objects)
}

// List returns copies of the placed objects in placement order.
func (r *PlacementRegistry) List() []PlacedObject {
	out := make([]PlacedObject, len(r.objects))
	for i, o := range r.objects {
		out[i] = *o
	}
	return out
}

// Clear empties the registry and returns one remove command per object, in
// placement order.
func (r *PlacementRegistry) Clear() []RemoveObjectCommand {
	if len(r.objects) == 0 {
		return nil
	}
	out := make([]RemoveObjectCommand, len(r.objects))
	for i, o := range r.objects {
		out[i] = RemoveObjectCommand{ObjectID: o.ID}
	}
	r.objects = nil
	r.index = make(map[string]int)
	return out
}

func (r *PlacementRegistry) rotate(id string, roll Roll) {
	if i, ok := r.index[id]; ok {
		r.objects[i].Orientation.X += roll.AngleX
		r.objects[i].Orientation.Z += roll.AngleZ
	}
}
