package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"weekchain/internal/confirm"
	"weekchain/internal/platform/middleware"
	"weekchain/internal/sale"
	"weekchain/internal/transport/http/shared"
	"weekchain/pkg/domain"
	dErrors "weekchain/pkg/domain-errors"
)

// Service defines the confirmation operations the handler exposes.
type Service interface {
	ConfirmSale(ctx context.Context, in confirm.Input) (*confirm.Result, error)
	CancelSale(ctx context.Context, id domain.SaleID) error
	RecordPending(ctx context.Context, in confirm.Input) (*sale.Sale, error)
}

// Handler exposes the internal sale ingestion endpoints. All routes require
// the admin token: confirmation requests come from the purchase orchestrator,
// never from end users.
type Handler struct {
	service  Service
	logger   *slog.Logger
	validate *validator.Validate
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/sales", h.handleRecordSale)
	r.Post("/sales/confirm", h.handleConfirmSale)
	r.Post("/sales/{saleID}/cancel", h.handleCancelSale)
}

type saleRequest struct {
	SaleID      string `json:"sale_id" validate:"required,uuid"`
	BrokerID    string `json:"broker_id" validate:"omitempty,uuid"`
	GrossAmount string `json:"gross_amount" validate:"required"`
	UnitCount   int    `json:"unit_count" validate:"required,gt=0"`
	PropertyRef string `json:"property_ref" validate:"required"`
	BuyerRef    string `json:"buyer_ref" validate:"required"`
	Season      string `json:"season"`
}

type commissionResponse struct {
	BrokerID    string `json:"broker_id"`
	Tier        string `json:"tier"`
	RateApplied string `json:"rate_applied"`
	AmountOwed  string `json:"amount_owed"`
	UnitsBefore int    `json:"units_before"`
}

type certificateResponse struct {
	Code          string    `json:"code"`
	IntegrityHash string    `json:"integrity_hash"`
	IssuedAt      time.Time `json:"issued_at"`
}

type confirmResponse struct {
	SaleID      string              `json:"sale_id"`
	Status      string              `json:"status"`
	Commission  *commissionResponse `json:"commission,omitempty"`
	Certificate certificateResponse `json:"certificate"`
	UnitsAfter  int                 `json:"units_after"`
	Replayed    bool                `json:"replayed"`
}

func (h *Handler) handleConfirmSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	in, err := h.decodeSale(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid confirm request", "request_id", requestID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	res, err := h.service.ConfirmSale(ctx, *in)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInvalidInput) || dErrors.Is(err, dErrors.CodeInvariantViolation) {
			h.logger.WarnContext(ctx, "confirmation rejected", "request_id", requestID, "sale_id", in.SaleID.String(), "error", err.Error())
		} else {
			h.logger.ErrorContext(ctx, "confirmation failed", "request_id", requestID, "sale_id", in.SaleID.String(), "error", err.Error())
		}
		shared.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	shared.WriteJSON(w, status, toConfirmResponse(res))
}

func (h *Handler) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	in, err := h.decodeSale(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid sale record request", "request_id", requestID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	sl, err := h.service.RecordPending(ctx, *in)
	if err != nil {
		h.logger.WarnContext(ctx, "sale record rejected", "request_id", requestID, "sale_id", in.SaleID.String(), "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]string{
		"sale_id": sl.ID.String(),
		"status":  string(sl.Status),
	})
}

func (h *Handler) handleCancelSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := domain.ParseSaleID(chi.URLParam(r, "saleID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.CancelSale(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "cancellation rejected", "request_id", requestID, "sale_id", id.String(), "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeSale(r *http.Request) (*confirm.Input, error) {
	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid sale payload")
	}

	saleID, err := domain.ParseSaleID(req.SaleID)
	if err != nil {
		return nil, err
	}
	in := confirm.Input{
		SaleID:      saleID,
		UnitCount:   req.UnitCount,
		PropertyRef: req.PropertyRef,
		BuyerRef:    req.BuyerRef,
		Season:      req.Season,
	}

	if req.BrokerID != "" {
		brokerID, err := domain.ParseBrokerID(req.BrokerID)
		if err != nil {
			return nil, err
		}
		in.BrokerID = &brokerID
	}

	gross, err := decimal.NewFromString(req.GrossAmount)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "gross amount must be a decimal string")
	}
	in.GrossAmount = gross
	return &in, nil
}

func toConfirmResponse(res *confirm.Result) confirmResponse {
	out := confirmResponse{
		SaleID: res.Sale.ID.String(),
		Status: string(res.Sale.Status),
		Certificate: certificateResponse{
			Code:          res.Certificate.Code,
			IntegrityHash: res.Certificate.IntegrityHash,
			IssuedAt:      res.Certificate.IssuedAt,
		},
		UnitsAfter: res.UnitsAfter,
		Replayed:   res.Replayed,
	}
	if res.Commission != nil {
		out.Commission = &commissionResponse{
			BrokerID:    res.Commission.BrokerID.String(),
			Tier:        string(res.Commission.TierAtTime),
			RateApplied: res.Commission.RateApplied.String(),
			AmountOwed:  res.Commission.AmountOwed.StringFixed(2),
			UnitsBefore: res.Commission.UnitsBefore,
		}
	}
	return out
}
