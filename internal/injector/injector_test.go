package injector

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/ardice/internal/config"
	"github.com/zeusync/ardice/internal/core/observability/log"
)

func TestProvideLoggerUsesConfiguredLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"

	assert.Equal(t, log.LevelWarn, ProvideLogger(cfg).GetLevel())
}

func TestInitializeServer(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "silent"

	s := InitializeServer(cfg)
	require.NotNil(t, s)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
