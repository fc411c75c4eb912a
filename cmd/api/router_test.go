package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/handler"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/service"
	"github.com/FACorreiaa/sukhavati-ingest/pkg/config"
)

type nopIngester struct{}

func (nopIngester) Ingest(context.Context, service.Request) (*service.Summary, error) {
	return &service.Summary{OK: true}, nil
}

func testDeps() *Dependencies {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Dependencies{
		Config: &config.Config{
			Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
			Auth:   config.AuthConfig{JWTSecret: "secret"},
			Observability: config.ObservabilityConfig{
				MetricsEnabled: true,
			},
		},
		Logger:        logger,
		UploadHandler: handler.NewUploadHandler(nopIngester{}, logger, 1<<20, time.Minute),
	}
}

func TestSetupRouter(t *testing.T) {
	router := SetupRouter(testDeps())

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"readiness is public", http.MethodGet, "/ready", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", http.StatusOK},
		{"uploads require a token", http.MethodPost, "/v1/uploads", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/nope", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		})
	}
}
