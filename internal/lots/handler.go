package lots

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/merx-ops/merx/internal/platform/httpx"
)

// Handler wires the stock listing, valuation and manual lot operations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	printer  *message.Printer
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		printer:  message.NewPrinter(language.English),
	}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/lots", h.listLots)
	r.Get("/summary", h.showSummary)
	r.Get("/overview", h.showOverview)
	r.Post("/lots/{id}/balance", h.setBalance)
	r.Post("/lots/{id}/archive", h.archiveLot)
	r.Post("/lots/{id}/restore", h.restoreLot)
}

type lotView struct {
	ID           int64      `json:"id"`
	SKU          string     `json:"sku"`
	ProductName  string     `json:"product_name"`
	Brand        string     `json:"brand,omitempty"`
	Supplier     string     `json:"supplier,omitempty"`
	OrderRef     string     `json:"order_ref,omitempty"`
	TrackingRef  string     `json:"tracking_ref,omitempty"`
	PurchaseDate time.Time  `json:"purchase_date"`
	UnitCost     float64    `json:"unit_cost"`
	InitialQty   float64    `json:"initial_qty"`
	Balance      float64    `json:"balance"`
	Status       LotStatus  `json:"status"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
}

type summaryView struct {
	StockSummary
	TotalValueDisplay string `json:"total_value_display"`
}

type setBalanceRequest struct {
	Balance float64 `json:"balance" validate:"gte=0"`
	Confirm bool    `json:"confirm"`
}

type archiveRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	collection, err := h.service.ListLots(r.Context(), filter)
	if err != nil {
		h.logger.Error("list lots", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": toLotViews(collection)})
}

func (h *Handler) showSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("stock summary", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.summaryView(summary))
}

// showOverview answers the stock page in one round trip: the filtered lot
// list and the valuation totals, loaded concurrently.
func (h *Handler) showOverview(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var (
		collection []Lot
		summary    StockSummary
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		collection, err = h.service.ListLots(ctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = h.service.Summary(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("stock overview", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"lots":    toLotViews(collection),
		"summary": h.summaryView(summary),
	})
}

func (h *Handler) setBalance(w http.ResponseWriter, r *http.Request) {
	lotID, err := parseLotID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid lot id")
		return
	}
	var req setBalanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lot, err := h.service.SetBalance(r.Context(), lotID, req.Balance, req.Confirm)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("lot balance adjusted",
		slog.Int64("lot_id", lotID),
		slog.Float64("balance", req.Balance))
	httpx.JSON(w, http.StatusOK, toLotView(lot))
}

func (h *Handler) archiveLot(w http.ResponseWriter, r *http.Request) {
	lotID, err := parseLotID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid lot id")
		return
	}
	// An empty body means archive without confirmation.
	var req archiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	lot, err := h.service.Archive(r.Context(), lotID, req.Confirm)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("lot archived", slog.Int64("lot_id", lotID))
	httpx.JSON(w, http.StatusOK, toLotView(lot))
}

func (h *Handler) restoreLot(w http.ResponseWriter, r *http.Request) {
	lotID, err := parseLotID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid lot id")
		return
	}
	lot, err := h.service.Restore(r.Context(), lotID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("lot restored", slog.Int64("lot_id", lotID))
	httpx.JSON(w, http.StatusOK, toLotView(lot))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLotNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConfirmationRequired):
		httpx.Problem(w, http.StatusConflict, "Confirmation Required", err.Error())
	case errors.Is(err, ErrNegativeBalance), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrAlreadyArchived), errors.Is(err, ErrNotArchived):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) summaryView(summary StockSummary) summaryView {
	return summaryView{
		StockSummary:      summary,
		TotalValueDisplay: h.printer.Sprintf("%v", number.Decimal(summary.TotalValue, number.Scale(2))),
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Query:    q.Get("q"),
		Supplier: q.Get("supplier"),
	}
	switch status := q.Get("status"); status {
	case "", "all":
	case string(LotStatusActive), string(LotStatusArchived):
		filter.Status = LotStatus(status)
	default:
		return ListFilter{}, errors.New("unknown status filter")
	}
	switch bucket := q.Get("bucket"); bucket {
	case "":
	case string(BucketHasStock), string(BucketNoStock), string(BucketLow):
		filter.Bucket = StockBucket(bucket)
	default:
		return ListFilter{}, errors.New("unknown balance bucket")
	}
	return filter, nil
}

func parseLotID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func toLotViews(collection []Lot) []lotView {
	views := make([]lotView, 0, len(collection))
	for _, lot := range collection {
		views = append(views, toLotView(lot))
	}
	return views
}

func toLotView(lot Lot) lotView {
	return lotView{
		ID:           lot.ID,
		SKU:          lot.SKU,
		ProductName:  lot.ProductName,
		Brand:        lot.Brand,
		Supplier:     lot.Supplier,
		OrderRef:     lot.OrderRef,
		TrackingRef:  lot.TrackingRef,
		PurchaseDate: lot.PurchaseDate,
		UnitCost:     lot.UnitCost,
		InitialQty:   lot.InitialQty,
		Balance:      lot.Balance,
		Status:       lot.Status,
		ArchivedAt:   lot.ArchivedAt,
	}
}
