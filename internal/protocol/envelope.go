// Package protocol defines the JSON frames exchanged between an AR client and
// its table. Every frame is an Envelope; outbound frames echo the seq of the
// inbound frame that caused them.
package protocol

import (
	"encoding/json"

	"github.com/zeusync/ardice/internal/core/spatial"
	"github.com/zeusync/ardice/internal/core/tracker"
	"gonum.org/v1/gonum/spatial/r3"
)

// Inbound frame types that are not table events.
const (
	TypeJoin            = "join"
	TypeSnapshotRequest = "snapshot.request"
)

// Outbound frame types that are not render commands.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

type Envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func FromR3(v r3.Vec) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

func (v Vec3) R3() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

type JoinPayload struct {
	Table string `json:"table"`
}

type SurfacePayload struct {
	AnchorID  string         `json:"anchorId"`
	Center    spatial.Vec2   `json:"center"`
	Extent    spatial.Extent `json:"extent"`
	Alignment string         `json:"alignment,omitempty"`
}

func (p SurfacePayload) geometry() tracker.Geometry {
	return tracker.Geometry{Center: p.Center, Extent: p.Extent, Alignment: tracker.Alignment(p.Alignment)}
}

type AnchorPayload struct {
	AnchorID string `json:"anchorId"`
}

type PlacePayload struct {
	AnchorID   string   `json:"anchorId,omitempty"`
	Hit        Vec3     `json:"hit"`
	HalfHeight *float64 `json:"halfHeight,omitempty"`
}

type RollPayload struct {
	ObjectID string `json:"objectId,omitempty"`
}

type TransformPayload struct {
	Translation Vec3       `json:"translation"`
	Rotation    [9]float64 `json:"rotation"`
}

type SurfaceDrawPayload struct {
	AnchorID  string           `json:"anchorId"`
	Center    spatial.Vec2     `json:"center"`
	Extent    spatial.Extent   `json:"extent"`
	Transform TransformPayload `json:"transform"`
}

type SpawnPayload struct {
	ObjectID string `json:"objectId"`
	Position Vec3   `json:"position"`
}

type RotatePayload struct {
	ObjectID string  `json:"objectId"`
	AngleX   float64 `json:"angleX"`
	AngleZ   float64 `json:"angleZ"`
	Duration float64 `json:"duration"`
}

type ObjectPayload struct {
	ObjectID string `json:"objectId"`
}

type ObjectState struct {
	ObjectID   string  `json:"objectId"`
	SurfaceID  string  `json:"surfaceId,omitempty"`
	Position   Vec3    `json:"position"`
	OrientX    float64 `json:"orientX"`
	OrientZ    float64 `json:"orientZ"`
	HalfHeight float64 `json:"halfHeight"`
}

type SnapshotPayload struct {
	Table    string           `json:"table"`
	Paused   bool             `json:"paused"`
	Surfaces []SurfacePayload `json:"surfaces"`
	Objects  []ObjectState    `json:"objects"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
