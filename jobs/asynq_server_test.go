package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-app/fintrack/internal/rbac"
)

type stubEnqueuer struct {
	payload TokenPurgePayload
	calls   int
	err     error
}

func (s *stubEnqueuer) EnqueueTokenPurge(_ context.Context, payload TokenPurgePayload) (*asynq.TaskInfo, error) {
	s.calls++
	s.payload = payload
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault, Type: TaskTokenPurge}, nil
}

type identityVerifier struct {
	identity rbac.Identity
}

func (v identityVerifier) Verify(ctx context.Context, token string) (rbac.Identity, error) {
	if v.identity.SubjectID == "" {
		return rbac.Identity{}, rbac.ErrInvalidCredential
	}
	return v.identity, nil
}

func newJobsServer(enqueuer Enqueuer, identity rbac.Identity) *chi.Mux {
	mw := rbac.Middleware{Catalogue: rbac.DefaultCatalogue(), Verifier: identityVerifier{identity: identity}}
	handler := NewHandler(nil, enqueuer, mw, slog.Default())
	r := chi.NewRouter()
	r.Route("/jobs", handler.MountRoutes)
	return r
}

func TestTriggerTokenPurge(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	r := newJobsServer(enqueuer, rbac.Identity{SubjectID: "super-1", Role: rbac.RoleSuperAdmin})

	req := httptest.NewRequest(http.MethodPost, "/jobs/token-purge", nil)
	req.Header.Set("Authorization", "Bearer token")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	require.Equal(t, http.StatusAccepted, res.Code)
	assert.Equal(t, 1, enqueuer.calls)
	assert.False(t, enqueuer.payload.Before.IsZero())

	var body map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, TaskTokenPurge, body["task"])
	assert.Equal(t, "task-1", body["id"])
	assert.Equal(t, QueueDefault, body["queue"])
}

func TestTriggerTokenPurgeRequiresSystemAdministration(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	r := newJobsServer(enqueuer, rbac.Identity{SubjectID: "admin-1", Role: rbac.RoleAdmin})

	req := httptest.NewRequest(http.MethodPost, "/jobs/token-purge", nil)
	req.Header.Set("Authorization", "Bearer token")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Zero(t, enqueuer.calls)
}

func TestTriggerTokenPurgeRequiresAuthentication(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	r := newJobsServer(enqueuer, rbac.Identity{})

	req := httptest.NewRequest(http.MethodPost, "/jobs/token-purge", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Zero(t, enqueuer.calls)
}

func TestTriggerTokenPurgeQueueFailure(t *testing.T) {
	enqueuer := &stubEnqueuer{err: errors.New("redis: connection refused")}
	r := newJobsServer(enqueuer, rbac.Identity{SubjectID: "super-1", Role: rbac.RoleSuperAdmin})

	req := httptest.NewRequest(http.MethodPost, "/jobs/token-purge", nil)
	req.Header.Set("Authorization", "Bearer token")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := newJobsServer(nil, rbac.Identity{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, res.Body.String())
}
