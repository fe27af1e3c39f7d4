package perf

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fintrack-app/fintrack/internal/rbac"
)

type staticVerifier struct {
	identity rbac.Identity
}

func (v staticVerifier) Verify(context.Context, string) (rbac.Identity, error) {
	return v.identity, nil
}

// Guard evaluation sits on every protected route, so its overhead has to stay
// far below request budgets even with the full chain installed.
func TestGuardChainLatencyTarget(t *testing.T) {
	mw := rbac.Middleware{
		Catalogue: rbac.DefaultCatalogue(),
		Verifier:  staticVerifier{identity: rbac.Identity{SubjectID: "u1", Email: "u1@test.local", Role: rbac.RoleAdmin}},
		Logger:    slog.Default(),
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.With(mw.Protect(
			mw.MinimumRole(rbac.RoleAdmin),
			mw.HasPermission(rbac.PermManageUsers),
			mw.AllPermissions(rbac.PermReadAllData, rbac.PermViewAnalytics),
		)).Get("/guarded", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	const runs = 200
	samples := make([]time.Duration, 0, runs)
	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Authorization", "Bearer static")
		res := httptest.NewRecorder()

		start := time.Now()
		r.ServeHTTP(res, req)
		samples = append(samples, time.Since(start))

		if res.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d", res.Code)
		}
	}

	p95 := percentile95(samples)
	if p95 > 50*time.Millisecond {
		t.Fatalf("guard chain latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
