package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/chromenv/internal/config"
	"github.com/jmylchreest/chromenv/internal/http/handlers"
	"github.com/jmylchreest/chromenv/internal/http/mw"
	"github.com/jmylchreest/chromenv/internal/models"
	"github.com/jmylchreest/chromenv/internal/orchestrator"
)

// stubService answers List and Get; other methods are unused here.
type stubService struct {
	handlers.EnvironmentService
	envs []models.EnvironmentStatus
}

func (s *stubService) List(context.Context) ([]models.EnvironmentStatus, error) {
	return s.envs, nil
}

func (s *stubService) Get(_ context.Context, id string) (*models.EnvironmentStatus, error) {
	for _, e := range s.envs {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, &orchestrator.Error{Code: orchestrator.CodeNotFound, Op: "get", EnvironmentID: id}
}

func (s *stubService) Instances() []models.InstanceInfo { return nil }

type stubSettings struct{ s config.Settings }

func (s *stubSettings) Get() config.Settings        { return s.s }
func (s *stubSettings) Save(c config.Settings) error { s.s = c; return nil }

func newTestRouter(t *testing.T, token string) http.Handler {
	t.Helper()
	svc := &stubService{envs: []models.EnvironmentStatus{{
		Environment: models.Environment{ID: "01ABC", Name: "work", GroupName: "g", DataDir: "/data/environments/01abc"},
		State:       models.InstanceIdle,
	}}}

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "chromenv_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	return NewRouter(Options{
		ControlToken: token,
		CORSOrigins:  []string{"http://localhost:*"},
		Metrics:      reg,
	}, &Handlers{
		Environments: handlers.NewEnvironmentHandler(svc),
		Settings:     handlers.NewSettingsHandler(&stubSettings{s: config.Settings{DataPath: "/data"}}),
		Events:       handlers.NewEventsHandler(orchestrator.NewBroadcaster()),
	})
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthIsPublic(t *testing.T) {
	r := newTestRouter(t, "s3cret")

	rec := do(t, r, http.MethodGet, Prefix+"/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(mw.VersionHeader))

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}

func TestRouter_RequiresToken(t *testing.T) {
	r := newTestRouter(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, Prefix+"/environments", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/metrics", "wrong").Code)

	rec := do(t, r, http.MethodGet, Prefix+"/environments", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Environments []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"environments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Environments, 1)
	assert.Equal(t, "01ABC", body.Environments[0].ID)
	assert.Equal(t, "idle", body.Environments[0].State)
}

func TestRouter_NotFoundIsProblemJSON(t *testing.T) {
	r := newTestRouter(t, "")

	rec := do(t, r, http.MethodGet, Prefix+"/environments/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "json")
	assert.Contains(t, rec.Body.String(), string(orchestrator.CodeNotFound))
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, "s3cret")

	rec := do(t, r, http.MethodGet, "/metrics", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chromenv_test_total 1")
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t, "s3cret")

	req := httptest.NewRequest(http.MethodOptions, Prefix+"/environments", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_OpenAPIListsRoutes(t *testing.T) {
	r := newTestRouter(t, "s3cret")

	rec := do(t, r, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, path := range []string{
		Prefix + "/environments/{id}/launch",
		Prefix + "/trash/purge",
		Prefix + "/groups/empty",
		Prefix + "/settings",
		Prefix + "/events",
	} {
		assert.True(t, strings.Contains(body, path), "openapi missing %s", path)
	}
}
