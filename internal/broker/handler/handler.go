package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"weekchain/internal/broker"
	"weekchain/internal/platform/middleware"
	"weekchain/internal/transport/http/shared"
	"weekchain/pkg/domain"
	dErrors "weekchain/pkg/domain-errors"
)

// Service defines the broker operations the handler exposes.
type Service interface {
	GetStanding(ctx context.Context, id domain.BrokerID) (*broker.Standing, error)
	Correct(ctx context.Context, id domain.BrokerID, delta int) (*broker.Standing, error)
	Deactivate(ctx context.Context, id domain.BrokerID) error
}

// Handler serves broker standing and the administrative lifecycle endpoints.
// Standing is broker-authenticated; corrections and deactivation are wired
// behind the admin token by the router.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterBrokerRoutes mounts the JWT-authenticated broker surface.
func (h *Handler) RegisterBrokerRoutes(r chi.Router) {
	r.Get("/brokers/me/standing", h.handleGetStanding)
}

// RegisterAdminRoutes mounts the admin-token surface.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/brokers/{brokerID}/corrections", h.handleCorrect)
	r.Post("/brokers/{brokerID}/deactivate", h.handleDeactivate)
}

type standingResponse struct {
	BrokerID        string `json:"broker_id"`
	Tier            string `json:"tier"`
	CumulativeUnits int    `json:"cumulative_units"`
	CommissionRate  string `json:"commission_rate"`
	BonusUnits      int    `json:"bonus_units"`
	Active          bool   `json:"active"`
}

func (h *Handler) handleGetStanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := domain.ParseBrokerID(middleware.GetAuthenticatedBrokerID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "broker id missing from context despite auth middleware",
			"request_id", requestID)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	standing, err := h.service.GetStanding(ctx, id)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load standing",
				"request_id", requestID, "broker_id", id.String(), "error", err.Error())
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toStandingResponse(standing))
}

type correctionRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handler) handleCorrect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := domain.ParseBrokerID(chi.URLParam(r, "brokerID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	standing, err := h.service.Correct(ctx, id, req.Delta)
	if err != nil {
		h.logger.WarnContext(ctx, "unit correction rejected",
			"request_id", requestID, "broker_id", id.String(), "delta", req.Delta, "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "unit correction applied",
		"request_id", requestID, "broker_id", id.String(), "delta", req.Delta, "reason", req.Reason)
	shared.WriteJSON(w, http.StatusOK, toStandingResponse(standing))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseBrokerID(chi.URLParam(r, "brokerID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.Deactivate(ctx, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toStandingResponse(s *broker.Standing) standingResponse {
	return standingResponse{
		BrokerID:        s.BrokerID.String(),
		Tier:            string(s.TierName),
		CumulativeUnits: s.CumulativeUnits,
		CommissionRate:  s.CommissionRate.String(),
		BonusUnits:      s.BonusUnits,
		Active:          s.Active,
	}
}
