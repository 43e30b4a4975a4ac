package protocol

import (
	"encoding/json"
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/zeusync/ardice/internal/core/tracker"
	"github.com/zeusync/ardice/internal/table"
)

// Decode validates a raw frame and parses its envelope.
func Decode(data []byte) (Envelope, error) {
	if err := Validate(data); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.Wrap(ErrInvalidFrame, err.Error())
	}
	return env, nil
}

// Event converts an inbound envelope into a table event.
func (e Envelope) Event() (table.Event, error) {
	switch table.EventType(e.Type) {
	case table.EventSurfaceDetected:
		var p SurfacePayload
		if err := e.decodePayload(&p); err != nil {
			return nil, err
		}
		return table.SurfaceDetected{AnchorID: p.AnchorID, Geometry: p.geometry()}, nil
	case table.EventSurfaceUpdated:
		var p SurfacePayload
		if err := e.decodePayload(&p); err != nil {
			return nil, err
		}
		return table.SurfaceUpdated{AnchorID: p.AnchorID, Geometry: p.geometry()}, nil
	case table.EventSurfaceRemoved:
		var p AnchorPayload
		if err := e.decodePayload(&p); err != nil {
			return nil, err
		}
		return table.SurfaceRemoved{AnchorID: p.AnchorID}, nil
	case table.EventPlaceRequested:
		var p PlacePayload
		if err := e.decodePayload(&p); err != nil {
			return nil, err
		}
		return table.PlaceRequested{AnchorID: p.AnchorID, Hit: p.Hit.R3(), HalfHeight: p.HalfHeight}, nil
	case table.EventRollRequested:
		var p RollPayload
		if err := e.decodePayload(&p); err != nil {
			return nil, err
		}
		return table.RollRequested{ObjectID: p.ObjectID}, nil
	case table.EventClearRequested:
		return table.ClearRequested{}, nil
	case table.EventPauseRequested:
		return table.PauseRequested{}, nil
	case table.EventResumeRequested:
		return table.ResumeRequested{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "%q is not a table event", e.Type)
}

// Join extracts the table name from a join frame.
func (e Envelope) Join() (string, error) {
	if e.Type != TypeJoin {
		return "", errors.Wrapf(ErrUnknownType, "expected %q, got %q", TypeJoin, e.Type)
	}
	var p JoinPayload
	if err := e.decodePayload(&p); err != nil {
		return "", err
	}
	if p.Table == "" {
		return "", errors.Wrap(ErrInvalidFrame, "join without table")
	}
	return p.Table, nil
}

func (e Envelope) decodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.Wrapf(ErrInvalidFrame, "%s payload: %v", e.Type, err)
	}
	return nil
}

// New builds an envelope around a payload.
func New(typ string, seq uint64, payload any) (Envelope, error) {
	env := Envelope{Type: typ, Seq: seq}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", typ)
	}
	env.Payload = raw
	return env, nil
}

// EncodeCommand turns one render command into an outbound envelope.
func EncodeCommand(seq uint64, cmd tracker.Command) (Envelope, error) {
	var payload any
	switch c := cmd.(type) {
	case tracker.SurfaceGridCommand:
		payload = SurfaceDrawPayload{
			AnchorID: c.AnchorID,
			Center:   c.Center,
			Extent:   c.Extent,
			Transform: TransformPayload{
				Translation: FromR3(c.Transform.Translation),
				Rotation:    c.Transform.Rotation,
			},
		}
	case tracker.RemoveSurfaceGridCommand:
		payload = AnchorPayload{AnchorID: c.AnchorID}
	case tracker.SpawnCommand:
		payload = SpawnPayload{ObjectID: c.ObjectID, Position: FromR3(c.Position)}
	case tracker.RotateCommand:
		payload = RotatePayload{ObjectID: c.ObjectID, AngleX: c.AngleX, AngleZ: c.AngleZ, Duration: c.Duration}
	case tracker.RemoveObjectCommand:
		payload = ObjectPayload{ObjectID: c.ObjectID}
	default:
		return Envelope{}, errors.Wrapf(ErrUnknownType, "command %T", cmd)
	}
	return New(string(cmd.Kind()), seq, payload)
}

// EncodeBatch encodes every command of a batch, in order.
func EncodeBatch(b table.Batch) ([]Envelope, error) {
	out := make([]Envelope, 0, len(b.Commands))
	for _, cmd := range b.Commands {
		env, err := EncodeCommand(b.Seq, cmd)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// SnapshotPayloadOf converts a table snapshot for the wire.
func SnapshotPayloadOf(tableID string, snap table.Snapshot) SnapshotPayload {
	p := SnapshotPayload{
		Table:    tableID,
		Paused:   snap.Paused,
		Surfaces: make([]SurfacePayload, 0, len(snap.Surfaces)),
		Objects:  make([]ObjectState, 0, len(snap.Objects)),
	}
	for _, s := range snap.Surfaces {
		p.Surfaces = append(p.Surfaces, SurfacePayload{AnchorID: s.AnchorID, Center: s.Center, Extent: s.Extent})
	}
	for _, o := range snap.Objects {
		p.Objects = append(p.Objects, ObjectState{
			ObjectID:   o.ID,
			SurfaceID:  o.SurfaceID,
			Position:   FromR3(o.Position),
			OrientX:    o.Orientation.X,
			OrientZ:    o.Orientation.Z,
			HalfHeight: o.HalfHeight,
		})
	}
	return p
}

func EncodeSnapshot(seq uint64, tableID string, snap table.Snapshot) (Envelope, error) {
	return New(TypeSnapshot, seq, SnapshotPayloadOf(tableID, snap))
}

// EncodeError reports err back to the client that sent frame seq.
func EncodeError(seq uint64, err error) Envelope {
	p := ErrorPayload{Code: ErrorCode(err), Message: err.Error()}
	env, mErr := New(TypeError, seq, p)
	if mErr != nil {
		return Envelope{Type: TypeError, Seq: seq}
	}
	return env
}

// ErrorCode maps known errors onto stable machine-readable codes.
func ErrorCode(err error) string {
	switch {
	case stderrors.Is(err, ErrInvalidFrame):
		return "invalid_frame"
	case stderrors.Is(err, ErrUnknownType), stderrors.Is(err, table.ErrUnknownEvent):
		return "unknown_type"
	case stderrors.Is(err, table.ErrSessionPaused):
		return "session_paused"
	case stderrors.Is(err, table.ErrTableClosed):
		return "table_closed"
	case stderrors.Is(err, tracker.ErrInvalidPlacement):
		return "invalid_placement"
	case stderrors.Is(err, tracker.ErrRegistryFull):
		return "registry_full"
	default:
		return "internal"
	}
}
