package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/ardice/internal/config"
	"github.com/zeusync/ardice/internal/core/observability/log"
	"github.com/zeusync/ardice/internal/protocol"
	"github.com/zeusync/ardice/internal/table"
)

func testConfig() config.Config {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.TableIdleTimeout = 0
	return cfg
}

type framesResponse struct {
	Frames []protocol.Envelope `json:"frames"`
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeFrames(t *testing.T, rec *httptest.ResponseRecorder) []protocol.Envelope {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp framesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Frames
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, protocol.TypeError, env.Type)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p.Code
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(), log.NewNop())

	rec := do(t, s.Handler(), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestUnknownTableIsNotFound(t *testing.T) {
	s := NewServer(testConfig(), log.NewNop())
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/tables/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "table_not_found", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/v1/tables/nope/roll", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, s.Tables().Len())
}

func TestRESTSession(t *testing.T) {
	s := NewServer(testConfig(), log.NewNop())
	defer s.Tables().CloseAll()
	h := s.Handler()

	frames := decodeFrames(t, do(t, h, http.MethodPost, "/api/v1/tables/t1/events",
		`{"type":"surface.detected","seq":1,"payload":{"anchorId":"A","center":{"x":0,"z":0},"extent":{"width":1,"depth":1}}}`))
	require.Len(t, frames, 1)
	assert.Equal(t, "surface.draw", frames[0].Type)
	assert.Equal(t, uint64(1), frames[0].Seq)

	// Nothing placed yet, so rolling is a no-op.
	assert.Empty(t, decodeFrames(t, do(t, h, http.MethodPost, "/api/v1/tables/t1/roll", "")))

	frames = decodeFrames(t, do(t, h, http.MethodPost, "/api/v1/tables/t1/events",
		`{"type":"object.place","seq":2,"payload":{"anchorId":"A","hit":{"x":0.2,"y":0,"z":0.3}}}`))
	require.Len(t, frames, 2)
	assert.Equal(t, "object.spawn", frames[0].Type)
	assert.Equal(t, "object.rotate", frames[1].Type)

	var spawn protocol.SpawnPayload
	require.NoError(t, json.Unmarshal(frames[0].Payload, &spawn))
	assert.InDelta(t, 0.05, spawn.Position.Y, 1e-9)

	frames = decodeFrames(t, do(t, h, http.MethodPost, "/api/v1/tables/t1/roll", ""))
	require.Len(t, frames, 1)
	assert.Equal(t, "object.rotate", frames[0].Type)

	frames = decodeFrames(t, do(t, h, http.MethodPost, "/api/v1/tables/t1/clear", ""))
	require.Len(t, frames, 1)
	assert.Equal(t, "object.remove", frames[0].Type)

	rec := do(t, h, http.MethodGet, "/api/v1/tables/t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap protocol.SnapshotPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "t1", snap.Table)
	assert.Len(t, snap.Surfaces, 1)
	assert.Empty(t, snap.Objects)
}

func TestRESTRejectsBadFrames(t *testing.T) {
	s := NewServer(testConfig(), log.NewNop())
	defer s.Tables().CloseAll()
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/tables/t1/events", `{"type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_frame", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/v1/tables/t1/events", `{"type":"join","payload":{"table":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_type", errorCode(t, rec))
}

func TestRESTPausedTableConflicts(t *testing.T) {
	s := NewServer(testConfig(), log.NewNop())
	defer s.Tables().CloseAll()
	h := s.Handler()

	decodeFrames(t, do(t, h, http.MethodPost, "/api/v1/tables/t1/events", `{"type":"session.pause"}`))

	rec := do(t, h, http.MethodPost, "/api/v1/tables/t1/roll", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_paused", errorCode(t, rec))
}

func TestMaxTables(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxTables = 1
	s := NewServer(cfg, log.NewNop())
	defer s.Tables().CloseAll()
	h := s.Handler()

	decodeFrames(t, do(t, h, http.MethodPost, "/api/v1/tables/t1/events", `{"type":"clear.request"}`))

	rec := do(t, h, http.MethodPost, "/api/v1/tables/t2/events", `{"type":"clear.request"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "max_tables", errorCode(t, rec))
}

func TestRegistrySweepKeepsSubscribedTables(t *testing.T) {
	r := NewRegistry(10, table.Config{RollDuration: 0.5}, log.NewNop())
	defer r.CloseAll()

	idle, err := r.GetOrCreate("idle")
	require.NoError(t, err)
	busy, err := r.GetOrCreate("busy")
	require.NoError(t, err)
	_, err = busy.Subscribe(func(table.Batch) {})
	require.NoError(t, err)

	assert.Equal(t, 0, r.Sweep(time.Hour))
	assert.Equal(t, 1, r.Sweep(0))

	_, ok := r.Get("idle")
	assert.False(t, ok)
	_, ok = r.Get("busy")
	assert.True(t, ok)

	_, err = idle.Submit(context.Background(), 1, table.ClearRequested{})
	assert.ErrorIs(t, err, table.ErrTableClosed)
}

func TestStartStop(t *testing.T) {
	s := NewServer(testConfig(), log.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrServerAlreadyRunning)
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.ErrorIs(t, s.Stop(stopCtx), ErrServerNotRunning)
	assert.ErrorIs(t, s.Start(ctx), ErrServerClosed)
}
