// Package api exposes the HTTP surface: health, metrics and digest
// acknowledgement.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/health"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/digest"
)

// NewRouter builds the HTTP router
func NewRouter(checker *health.Checker, digests digest.Repository) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", checker.HandleHealth)
	r.Get("/q/health", checker.HandleHealth)
	r.Get("/q/health/live", checker.HandleLive)
	r.Get("/q/health/ready", checker.HandleReady)

	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api/digests", NewDigestHandler(digests).Routes())

	return r
}
