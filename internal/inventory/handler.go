package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/farmanet-cl/farmanet/internal/platform/httpx"
)

// Handler exposes the inventory HTTP surface consumed by the pharmacy desk
// and, in the networked deployment, by the fulfillment orchestrator.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/medications", h.listMedications)
	r.Get("/medications/barcode/{barcode}", h.medicationByBarcode)
	r.Get("/medications/{id}/lots", h.listLots)
	r.Post("/lots", h.createLot)
	r.Post("/lots/{lot}/deliver", h.deliver)
	r.Post("/lots/{lot}/defects", h.reportDefect)
	r.Get("/ingredients", h.listIngredients)
	r.Get("/ingredients/{id}", h.ingredientDetail)
	r.Get("/ingredients/{id}/next_expiring_lot", h.nextExpiringLot)
}

type deliverRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type defectRequest struct {
	Kind     string `json:"kind" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type createLotRequest struct {
	Barcode       uuid.UUID `json:"barcode" validate:"required"`
	LotNumber     string    `json:"lot_number" validate:"required,max=50"`
	Expiration    time.Time `json:"expiration_date" validate:"required"`
	Quantity      int       `json:"quantity" validate:"gte=0"`
	HasDefects    bool      `json:"has_defects"`
	Defective     int       `json:"defective_quantity" validate:"gte=0"`
	Expired       int       `json:"expired_quantity" validate:"gte=0"`
	PoorCondition int       `json:"poor_condition_quantity" validate:"gte=0"`
	BrokenPackage int       `json:"broken_package_quantity" validate:"gte=0"`
}

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.service.ListMedications(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, meds)
}

func (h *Handler) medicationByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode, err := uuid.Parse(chi.URLParam(r, "barcode"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed barcode")
		return
	}
	med, err := h.service.MedicationByBarcode(r.Context(), barcode)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, med)
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed medication id")
		return
	}
	lots, err := h.service.LotsByMedication(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if len(lots) == 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no lots for this medication")
		return
	}
	httpx.JSON(w, http.StatusOK, lots)
}

func (h *Handler) createLot(w http.ResponseWriter, r *http.Request) {
	var req createLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lot, err := h.service.CreateLot(r.Context(), CreateLotInput{
		Barcode:       req.Barcode,
		LotNumber:     req.LotNumber,
		Expiration:    req.Expiration,
		Quantity:      req.Quantity,
		HasDefects:    req.HasDefects,
		Defective:     req.Defective,
		Expired:       req.Expired,
		PoorCondition: req.PoorCondition,
		BrokenPackage: req.BrokenPackage,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lot)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	lotNumber := chi.URLParam(r, "lot")

	var req deliverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity must be greater than zero")
		return
	}

	lot, err := h.service.Deliver(r.Context(), lotNumber, req.Quantity)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) reportDefect(w http.ResponseWriter, r *http.Request) {
	lotNumber := chi.URLParam(r, "lot")

	var req defectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	kind, err := ParseDefectKind(req.Kind)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unrecognised defect kind")
		return
	}

	lot, err := h.service.ReportDefect(r.Context(), lotNumber, kind, req.Quantity)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.service.ListIngredients(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ingredients)
}

func (h *Handler) ingredientDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed ingredient id")
		return
	}
	detail, err := h.service.IngredientDetail(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) nextExpiringLot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed ingredient id")
		return
	}
	pick, err := h.service.NextExpiringLot(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pick)
}

// respondErr maps inventory errors onto the wire contract.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrLotNotFound),
		errors.Is(err, ErrMedicationNotFound),
		errors.Is(err, ErrIngredientNotFound),
		errors.Is(err, ErrNoEligibleLot):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidDefectKind):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateLot):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("inventory request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
