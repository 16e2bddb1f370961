package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/farmanet-cl/farmanet/internal/platform/httpx"
	"github.com/farmanet-cl/farmanet/internal/prescription"
	"github.com/farmanet-cl/farmanet/internal/shared"
)

const idempotencyModule = "fulfillment"

// IdempotencyGuard protects the delivery endpoint against replayed requests.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes the fulfillment entry points.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyGuard
	validate    *validator.Validate
}

// NewHandler builds Handler. The idempotency guard is optional.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyGuard) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validate:    validator.New(),
	}
}

// MountRoutes registers fulfillment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/deliveries/prescriptions/{id}", h.deliver)
	r.Post("/deliveries/prescriptions/{id}/summary", h.summary)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prescriptionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed prescription id")
		return
	}

	var req DeliverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(ctx, idemKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "delivery already processed for this key")
				return
			}
			h.logger.Error("idempotency check failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}

	result, err := h.service.Deliver(ctx, prescriptionID, req)
	if err != nil {
		// A hard failure delivered nothing persistent for this key; release
		// it so the caller may retry.
		if idemKey != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(ctx, idemKey, idempotencyModule); delErr != nil {
				h.logger.Warn("idempotency key release failed", slog.Any("error", delErr))
			}
		}
		h.respondErr(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	prescriptionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed prescription id")
		return
	}

	result, err := h.service.Summary(r.Context(), prescriptionID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, prescription.ErrNotFound), errors.Is(err, prescription.ErrNoLines):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrMalformedDuration):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUpstream):
		httpx.Problem(w, http.StatusBadGateway, "Upstream Failure", err.Error())
	default:
		h.logger.Error("fulfillment request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
