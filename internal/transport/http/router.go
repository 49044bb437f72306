// Package httptransport wires the HTTP surface: the public verification and
// transparency routes, the JWT-authenticated broker routes and the
// admin-token operational routes, each with its own middleware chain.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	brokerhandler "weekchain/internal/broker/handler"
	certhandler "weekchain/internal/certificate/handler"
	confirmhandler "weekchain/internal/confirm/handler"
	"weekchain/internal/platform/middleware"
	"weekchain/internal/transport/http/shared"
)

// Config carries the cross-cutting settings the router needs.
type Config struct {
	JWTSigningKey  string
	AdminTokenHash string
	RequestTimeout time.Duration
}

// NewRouter assembles the complete route tree. Public routes carry no auth at
// all: verification must work for anyone holding a certificate code.
func NewRouter(
	cfg Config,
	logger *slog.Logger,
	certs *certhandler.Handler,
	brokers *brokerhandler.Handler,
	sales *confirmhandler.Handler,
) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	// Public, unauthenticated.
	r.Group(func(r chi.Router) {
		certs.RegisterPublicRoutes(r)
	})

	// Broker-authenticated.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireBrokerAuth(cfg.JWTSigningKey, logger))
		brokers.RegisterBrokerRoutes(r)
	})

	// Admin-token operational surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(cfg.AdminTokenHash, logger))
		r.Use(middleware.ContentTypeJSON)
		sales.Register(r)
		brokers.RegisterAdminRoutes(r)
		certs.RegisterAdminRoutes(r)
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
