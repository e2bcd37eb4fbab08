package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(checks map[string]Check, metrics http.Handler) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHealthHandler("ledgerd", checks, logger), metrics, logger)
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	failing := map[string]Check{"postgres": func(context.Context) error { return errors.New("down") }}
	rec := serve(newTestRouter(failing, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","service":"ledgerd"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		checks := map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return nil },
		}
		rec := serve(newTestRouter(checks, nil), "/readyz")

		require.Equal(t, http.StatusOK, rec.Code)
		var body readinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
	})

	t.Run("one failing check makes the service unavailable", func(t *testing.T) {
		checks := map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
		rec := serve(newTestRouter(checks, nil), "/readyz")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body readinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unavailable", body.Status)
		assert.Equal(t, "connection refused", body.Checks["redis"])
		assert.Equal(t, "ok", body.Checks["postgres"])
	})

	t.Run("no checks is ready", func(t *testing.T) {
		rec := serve(newTestRouter(nil, nil), "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsRoute(t *testing.T) {
	t.Run("mounted when a handler is given", func(t *testing.T) {
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ledger_payments_posted_total 1\n"))
		})
		rec := serve(newTestRouter(nil, metrics), "/metrics")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ledger_payments_posted_total")
	})

	t.Run("absent without a handler", func(t *testing.T) {
		rec := serve(newTestRouter(nil, nil), "/metrics")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReadinessChecksRunWithDeadline(t *testing.T) {
	var hasDeadline bool
	r := newTestRouter(map[string]Check{"db": func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}}, nil)

	rec := serve(r, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, hasDeadline)
}
