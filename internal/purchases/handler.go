package purchases

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/merx-ops/merx/internal/platform/httpx"
)

// Handler wires the purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the purchase handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
}

type purchaseRequest struct {
	Number      string     `json:"number" validate:"omitempty,max=50"`
	SKU         string     `json:"sku" validate:"required,max=64"`
	ProductName string     `json:"product_name" validate:"required,max=200"`
	Brand       string     `json:"brand" validate:"omitempty,max=100"`
	Supplier    string     `json:"supplier" validate:"omitempty,max=200"`
	TrackingRef string     `json:"tracking_ref" validate:"omitempty,max=100"`
	Qty         float64    `json:"qty" validate:"required,gt=0"`
	UnitPrice   float64    `json:"unit_price" validate:"gte=0"`
	Discount    float64    `json:"discount" validate:"gte=0"`
	Freight     float64    `json:"freight" validate:"gte=0"`
	Tax         float64    `json:"tax" validate:"gte=0"`
	Status      string     `json:"status" validate:"required"`
	OrderedAt   *time.Time `json:"ordered_at"`
}

func (req purchaseRequest) toInput() Input {
	input := Input{
		Number:      req.Number,
		SKU:         req.SKU,
		ProductName: req.ProductName,
		Brand:       req.Brand,
		Supplier:    req.Supplier,
		TrackingRef: req.TrackingRef,
		Qty:         req.Qty,
		UnitPrice:   req.UnitPrice,
		Discount:    req.Discount,
		Freight:     req.Freight,
		Tax:         req.Tax,
		Status:      Status(req.Status),
	}
	if req.OrderedAt != nil {
		input.OrderedAt = *req.OrderedAt
	}
	return input
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	orders, err := h.service.List(r.Context(), status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": orders})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase id")
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	po, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		h.logger.Error("create purchase", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.logger.Info("purchase created",
		slog.Int64("id", po.ID),
		slog.String("number", po.Number),
		slog.String("status", string(po.Status)))
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase id")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	po, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.logger.Error("update purchase", slog.Int64("id", id), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.logger.Info("purchase updated",
		slog.Int64("id", po.ID),
		slog.String("status", string(po.Status)))
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete purchase", slog.Int64("id", id), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.logger.Info("purchase deleted", slog.Int64("id", id))
	httpx.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (purchaseRequest, bool) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return purchaseRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return purchaseRequest{}, false
	}
	return req, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
