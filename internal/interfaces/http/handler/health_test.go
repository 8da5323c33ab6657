package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

var (
	healthy   = pingerFunc(func(context.Context) error { return nil })
	unhealthy = pingerFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		required map[string]Pinger
		optional map[string]Pinger
		status   int
		overall  string
		checks   map[string]string
	}{
		{
			name:     "all healthy",
			required: map[string]Pinger{"postgres": healthy},
			optional: map[string]Pinger{"redis": healthy},
			status:   http.StatusOK,
			overall:  "ok",
			checks:   map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:     "optional degraded",
			required: map[string]Pinger{"postgres": healthy},
			optional: map[string]Pinger{"milvus": unhealthy},
			status:   http.StatusOK,
			overall:  "ok",
			checks:   map[string]string{"postgres": "ok", "milvus": "degraded"},
		},
		{
			name:     "required down",
			required: map[string]Pinger{"postgres": unhealthy},
			status:   http.StatusServiceUnavailable,
			overall:  "not_ready",
			checks:   map[string]string{"postgres": "error"},
		},
		{
			name:     "required missing",
			required: map[string]Pinger{"postgres": nil},
			status:   http.StatusServiceUnavailable,
			overall:  "not_ready",
			checks:   map[string]string{"postgres": "missing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("test", tt.required, tt.optional)
			r := gin.New()
			r.GET("/health/ready", h.Ready)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}

			var resp readinessResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.overall {
				t.Errorf("status = %q, want %q", resp.Status, tt.overall)
			}
			for name, want := range tt.checks {
				if got := resp.Checks[name]; got == nil || got.Status != want {
					t.Errorf("check %s = %+v, want %s", name, got, want)
				}
			}
		})
	}
}

func TestHealthAndLive(t *testing.T) {
	h := NewHealthHandler("1.2.3", nil, nil)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/health/live", h.Live)

	for _, path := range []string{"/health", "/health/live"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q", resp.Version)
	}
}
