package sales

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

// Handler wires the sale order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the sale handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
}

type saleRequest struct {
	Number      string     `json:"number" validate:"omitempty,max=50"`
	SKU         string     `json:"sku" validate:"required,max=64"`
	ProductName string     `json:"product_name" validate:"required,max=200"`
	Customer    string     `json:"customer" validate:"omitempty,max=200"`
	Qty         float64    `json:"qty" validate:"required,gt=0"`
	UnitPrice   float64    `json:"unit_price" validate:"gte=0"`
	Status      string     `json:"status" validate:"required"`
	SoldAt      *time.Time `json:"sold_at"`
}

func (req saleRequest) toInput() Input {
	input := Input{
		Number:      req.Number,
		SKU:         req.SKU,
		ProductName: req.ProductName,
		Customer:    req.Customer,
		Qty:         req.Qty,
		UnitPrice:   req.UnitPrice,
		Status:      Status(req.Status),
	}
	if req.SoldAt != nil {
		input.SoldAt = *req.SoldAt
	}
	return input
}

type saleResponse struct {
	Sale         *SaleOrder    `json:"sale"`
	StockWarning *StockWarning `json:"stock_warning,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	sales, err := h.service.List(r.Context(), status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	sale, warning, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		h.logger.Error("create sale", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.logSale("sale created", sale, warning)
	httpx.JSON(w, http.StatusCreated, saleResponse{Sale: sale, StockWarning: warning})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	sale, warning, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.logger.Error("update sale", slog.Int64("id", id), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.logSale("sale updated", sale, warning)
	httpx.JSON(w, http.StatusOK, saleResponse{Sale: sale, StockWarning: warning})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete sale", slog.Int64("id", id), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.logger.Info("sale deleted", slog.Int64("id", id))
	httpx.NoContent(w)
}

func (h *Handler) logSale(msg string, sale *SaleOrder, warning *StockWarning) {
	attrs := []any{
		slog.Int64("id", sale.ID),
		slog.String("number", sale.Number),
		slog.String("status", string(sale.Status)),
	}
	if warning != nil {
		attrs = append(attrs, slog.Float64("qty_short", warning.QtyShort))
	}
	h.logger.Info(msg, attrs...)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (saleRequest, bool) {
	var req saleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return saleRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return saleRequest{}, false
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
