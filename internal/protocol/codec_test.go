package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/ardice/internal/core/spatial"
	"github.com/zeusync/ardice/internal/core/tracker"
	"github.com/zeusync/ardice/internal/table"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDecodeSurfaceDetected(t *testing.T) {
	env, err := Decode([]byte(`{"type":"surface.detected","seq":4,"payload":{"anchorId":"S1","center":{"x":0.5,"z":-1},"extent":{"width":1,"depth":2}}}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), env.Seq)

	ev, err := env.Event()
	require.NoError(t, err)
	assert.Equal(t, table.SurfaceDetected{
		AnchorID: "S1",
		Geometry: tracker.Geometry{
			Center: spatial.Vec2{X: 0.5, Z: -1},
			Extent: spatial.Extent{Width: 1, Depth: 2},
		},
	}, ev)
}

func TestDecodePlace(t *testing.T) {
	env, err := Decode([]byte(`{"type":"object.place","seq":1,"payload":{"anchorId":"S1","hit":{"x":0.2,"y":0,"z":0.3},"halfHeight":0.05}}`))
	require.NoError(t, err)

	ev, err := env.Event()
	require.NoError(t, err)
	place := ev.(table.PlaceRequested)
	assert.Equal(t, "S1", place.AnchorID)
	assert.Equal(t, r3.Vec{X: 0.2, Y: 0, Z: 0.3}, place.Hit)
	require.NotNil(t, place.HalfHeight)
	assert.Equal(t, 0.05, *place.HalfHeight)
}

func TestDecodePayloadlessEvents(t *testing.T) {
	cases := map[string]table.Event{
		`{"type":"roll.request"}`:                             table.RollRequested{},
		`{"type":"roll.request","payload":{"objectId":"d1"}}`: table.RollRequested{ObjectID: "d1"},
		`{"type":"clear.request","seq":9}`:                    table.ClearRequested{},
		`{"type":"session.pause"}`:                            table.PauseRequested{},
		`{"type":"session.resume"}`:                           table.ResumeRequested{},
	}
	for raw, want := range cases {
		env, err := Decode([]byte(raw))
		require.NoError(t, err, raw)
		ev, err := env.Event()
		require.NoError(t, err, raw)
		assert.Equal(t, want, ev, raw)
	}
}

func TestSchemaRejectsMalformedFrames(t *testing.T) {
	frames := []string{
		`not json`,
		`{}`,
		`{"type":"teleport"}`,
		`{"type":"roll.request","seq":-1}`,
		`{"type":"surface.detected","payload":{"anchorId":"S1"}}`,
		`{"type":"surface.detected","payload":{"anchorId":"","center":{"x":0,"z":0},"extent":{"width":1,"depth":1}}}`,
		`{"type":"surface.removed"}`,
		`{"type":"object.place","payload":{"hit":{"x":0,"z":0}}}`,
		`{"type":"object.place","payload":{"hit":{"x":0,"y":0,"z":0},"halfHeight":-1}}`,
		`{"type":"join","payload":{}}`,
	}
	for _, raw := range frames {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidFrame, raw)
	}
}

func TestJoin(t *testing.T) {
	env, err := Decode([]byte(`{"type":"join","payload":{"table":"kitchen"}}`))
	require.NoError(t, err)

	name, err := env.Join()
	require.NoError(t, err)
	assert.Equal(t, "kitchen", name)

	_, err = env.Event()
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Envelope{Type: "roll.request"}.Join()
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEncodeBatch(t *testing.T) {
	batch := table.Batch{Seq: 12, Commands: []tracker.Command{
		tracker.SurfaceGridCommand{AnchorID: "S1", Transform: spatial.SurfaceTransform(spatial.Vec2{X: 1})},
		tracker.SpawnCommand{ObjectID: "d1", Position: r3.Vec{X: 0.2, Y: 0.05, Z: 0.3}},
		tracker.RotateCommand{ObjectID: "d1", Roll: tracker.Roll{AngleX: 1, AngleZ: 2, Duration: 0.5}},
		tracker.RemoveObjectCommand{ObjectID: "d1"},
		tracker.RemoveSurfaceGridCommand{AnchorID: "S1"},
	}}

	envs, err := EncodeBatch(batch)
	require.NoError(t, err)
	require.Len(t, envs, 5)

	types := make([]string, len(envs))
	for i, e := range envs {
		types[i] = e.Type
		assert.Equal(t, uint64(12), e.Seq)
	}
	assert.Equal(t, []string{"surface.draw", "object.spawn", "object.rotate", "object.remove", "surface.remove"}, types)

	var draw SurfaceDrawPayload
	require.NoError(t, json.Unmarshal(envs[0].Payload, &draw))
	assert.Equal(t, Vec3{X: 1}, draw.Transform.Translation)
	assert.Equal(t, [9]float64{1, 0, 0, 0, 0, 1, 0, -1, 0}, draw.Transform.Rotation)

	var rotate map[string]any
	require.NoError(t, json.Unmarshal(envs[2].Payload, &rotate))
	assert.NotContains(t, rotate, "angleY")
	assert.Equal(t, 0.5, rotate["duration"])
}

func TestEncodeSnapshot(t *testing.T) {
	snap := table.Snapshot{Paused: true}
	snap.Surfaces = []tracker.Surface{{AnchorID: "S1"}}
	snap.Objects = []tracker.PlacedObject{{ID: "d1", Position: r3.Vec{Y: 0.05}, Orientation: tracker.Orientation{X: 1}}}

	env, err := EncodeSnapshot(3, "kitchen", snap)
	require.NoError(t, err)
	assert.Equal(t, TypeSnapshot, env.Type)

	var p SnapshotPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "kitchen", p.Table)
	assert.True(t, p.Paused)
	require.Len(t, p.Objects, 1)
	assert.Equal(t, 1.0, p.Objects[0].OrientX)
}

func TestEncodeError(t *testing.T) {
	env := EncodeError(5, table.ErrSessionPaused)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "session_paused", p.Code)
	assert.Equal(t, uint64(5), env.Seq)

	assert.Equal(t, "invalid_frame", ErrorCode(Validate([]byte(`{}`))))
	assert.Equal(t, "internal", ErrorCode(errors.New("disk on fire")))
}
