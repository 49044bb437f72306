package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"weekchain/internal/certificate"
	certmetrics "weekchain/internal/certificate/metrics"
	"weekchain/internal/certificate/service"
	"weekchain/internal/platform/middleware"
	"weekchain/internal/transport/http/shared"
	dErrors "weekchain/pkg/domain-errors"
)

// Verifier answers public verification queries.
type Verifier interface {
	Verify(ctx context.Context, query string) (*certificate.VerificationResult, error)
}

// PublicService serves the transparency feed, stats and revocation.
type PublicService interface {
	ListRecent(ctx context.Context, limit int) ([]*certificate.PublicListing, error)
	GetStats(ctx context.Context) (*service.Stats, error)
	Revoke(ctx context.Context, code, reason string) error
}

// Handler serves the public verification surface. Everything here is
// unauthenticated by design except revocation, which the router mounts behind
// the admin token.
type Handler struct {
	verifier Verifier
	public   PublicService
	logger   *slog.Logger
	metrics  *certmetrics.Metrics
}

func New(verifier Verifier, public PublicService, logger *slog.Logger, metrics *certmetrics.Metrics) *Handler {
	return &Handler{verifier: verifier, public: public, logger: logger, metrics: metrics}
}

// RegisterPublicRoutes mounts the unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/verify/{query}", h.handleVerify)
	r.Get("/certificates/recent", h.handleListRecent)
	r.Get("/stats", h.handleStats)
}

// RegisterAdminRoutes mounts the admin-token routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/certificates/{code}/revoke", h.handleRevoke)
}

type verifyResponse struct {
	Verdict     string     `json:"verdict"`
	PropertyRef string     `json:"property_ref,omitempty"`
	UnitCount   int        `json:"unit_count,omitempty"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	Revoked     bool       `json:"revoked"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.recordClient(r)

	res, err := h.verifier.Verify(ctx, chi.URLParam(r, "query"))
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeInvalidInput) {
			h.logger.ErrorContext(ctx, "verification failed",
				"request_id", middleware.GetRequestID(ctx), "error", err.Error())
		}
		shared.WriteError(w, err)
		return
	}

	// Every verdict is a 200: the outcome lives in the body, not the status,
	// so embedding pages can render all four states uniformly.
	shared.WriteJSON(w, http.StatusOK, verifyResponse{
		Verdict:     string(res.Verdict),
		PropertyRef: res.PropertyRef,
		UnitCount:   res.UnitCount,
		IssuedAt:    res.IssuedAt,
		Revoked:     res.Revoked,
	})
}

type listingResponse struct {
	PropertyRef string    `json:"property_ref"`
	UnitCount   int       `json:"unit_count"`
	Season      string    `json:"season,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	Verified    bool      `json:"verified"`
}

func (h *Handler) handleListRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	listings, err := h.public.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list recent certificates",
			"request_id", middleware.GetRequestID(ctx), "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingResponse{
			PropertyRef: l.PropertyRef,
			UnitCount:   l.UnitCount,
			Season:      l.Season,
			Amount:      l.Amount,
			IssuedAt:    l.IssuedAt,
			Verified:    l.Verified,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"certificates": out})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.public.GetStats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to aggregate stats",
			"request_id", middleware.GetRequestID(ctx), "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"total_sales":  stats.TotalSales,
		"total_units":  stats.TotalUnits,
		"gross_volume": stats.GrossVolume,
	})
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	var req revokeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	if err := h.public.Revoke(ctx, code, req.Reason); err != nil {
		h.logger.WarnContext(ctx, "revocation rejected",
			"request_id", middleware.GetRequestID(ctx), "code", code, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordClient buckets the caller's user agent into a platform family for the
// abuse-visibility counter. Nothing identifying is logged or stored.
func (h *Handler) recordClient(r *http.Request) {
	raw := r.UserAgent()
	if raw == "" {
		h.metrics.IncrementVerifyClient("unknown")
		return
	}
	ua := useragent.New(raw)
	switch {
	case ua.Bot():
		h.metrics.IncrementVerifyClient("bot")
	case ua.Mobile():
		h.metrics.IncrementVerifyClient("mobile")
	default:
		h.metrics.IncrementVerifyClient("desktop")
	}
}
