package table

import (
	"github.com/zeusync/ardice/internal/core/tracker"
	"gonum.org/v1/gonum/spatial/r3"
)

// EventType names an inbound event. The values double as wire frame types.
type EventType string

const (
	EventSurfaceDetected EventType = "surface.detected"
	EventSurfaceUpdated  EventType = "surface.updated"
	EventSurfaceRemoved  EventType = "surface.removed"
	EventPlaceRequested  EventType = "object.place"
	EventRollRequested   EventType = "roll.request"
	EventClearRequested  EventType = "clear.request"
	EventPauseRequested  EventType = "session.pause"
	EventResumeRequested EventType = "session.resume"
)

// Event is something the AR client reports to its table.
type Event interface {
	EventType() EventType
}

type SurfaceDetected struct {
	AnchorID string
	Geometry tracker.Geometry
}

type SurfaceUpdated struct {
	AnchorID string
	Geometry tracker.Geometry
}

type SurfaceRemoved struct {
	AnchorID string
}

// PlaceRequested is a tap the client already resolved to a point on a plane.
// An empty AnchorID skips the known-surface check. A nil HalfHeight uses the
// table default.
type PlaceRequested struct {
	AnchorID   string
	Hit        r3.Vec
	HalfHeight *float64
}

// RollRequested rolls one die, or every die when ObjectID is empty.
type RollRequested struct {
	ObjectID string
}

type ClearRequested struct{}

type PauseRequested struct{}

type ResumeRequested struct{}

func (SurfaceDetected) EventType() EventType { return EventSurfaceDetected }
func (SurfaceUpdated) EventType() EventType  { return EventSurfaceUpdated }
func (SurfaceRemoved) EventType() EventType  { return EventSurfaceRemoved }
func (PlaceRequested) EventType() EventType  { return EventPlaceRequested }
func (RollRequested) EventType() EventType   { return EventRollRequested }
func (ClearRequested) EventType() EventType  { return EventClearRequested }
func (PauseRequested) EventType() EventType  { return EventPauseRequested }
func (ResumeRequested) EventType() EventType { return EventResumeRequested }

// Batch is the set of commands one event produced.
type Batch struct {
	Table    string
	Seq      uint64
	Commands []tracker.Command
}
