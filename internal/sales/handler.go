package sales

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nusapos/nusapos/internal/platform/httpx"
	"github.com/nusapos/nusapos/internal/rbac"
	"github.com/nusapos/nusapos/internal/shared"
)

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     *shared.AuditLogger
	rbac      rbac.Middleware
	validator *validator.Validate
	printer   *message.Printer
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service, audit *shared.AuditLogger, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		audit:     audit,
		rbac:      rbacMW,
		validator: validator.New(),
		printer:   message.NewPrinter(language.Indonesian),
	}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleSales, rbac.ActionRead)))
		r.Get("/", h.listSales)
		r.Get("/summary", h.summary)
		r.Get("/{id}", h.getSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleSales, rbac.ActionCreate)))
		r.Post("/", h.createSale)
		r.Post("/{id}/submit", h.submitSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleSales, rbac.ActionUpdate)))
		r.Put("/{id}", h.updateSale)
		r.Post("/{id}/void", h.voidSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleSales, rbac.ActionDelete)))
		r.Delete("/{id}", h.deleteSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleSales, rbac.ActionPrint)))
		r.Get("/{id}/receipt", h.receipt)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleSales, rbac.ActionExport)))
		r.Get("/export", h.exportCSV)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleSalesApproval, rbac.ActionApprove)))
		r.Post("/{id}/approve", h.approveSale)
		r.Post("/{id}/reject", h.rejectSale)
	})
}

type saleLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Discount  float64 `json:"discount" validate:"gte=0"`
}

type createSaleRequest struct {
	OutletCode string            `json:"outlet_code" validate:"required"`
	Note       string            `json:"note"`
	SoldAt     *time.Time        `json:"sold_at"`
	Lines      []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateSaleRequest struct {
	OutletCode *string           `json:"outlet_code"`
	Note       *string           `json:"note"`
	SoldAt     *time.Time        `json:"sold_at"`
	Lines      []saleLineRequest `json:"lines" validate:"omitempty,min=1,dive"`
}

type reviewRequest struct {
	Note string `json:"note"`
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	list, total, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":      list,
		"pagination": shared.NewPagination(f.Page, f.PerPage, int(total)),
	})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateSaleInput{
		OutletCode:     req.OutletCode,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.SoldAt != nil {
		in.SoldAt = *req.SoldAt
	}
	for _, lr := range req.Lines {
		in.Lines = append(in.Lines, CreateSaleLine(lr))
	}
	sale, err := h.service.Create(r.Context(), in, actorID(r))
	if err != nil {
		if errors.Is(err, ErrEmptySale) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("create sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "sale.create", sale.Number, nil)
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	var req updateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := UpdateSaleInput{OutletCode: req.OutletCode, Note: req.Note, SoldAt: req.SoldAt}
	if req.Lines != nil {
		for _, lr := range req.Lines {
			in.Lines = append(in.Lines, CreateSaleLine(lr))
		}
	}
	sale, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "sale.update", sale.Number, nil)
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) submitSale(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "sale.submit", func(id int64, _ string) (*Sale, error) {
		return h.service.Submit(r.Context(), id, actorID(r))
	})
}

func (h *Handler) approveSale(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "sale.approve", func(id int64, note string) (*Sale, error) {
		return h.service.Approve(r.Context(), id, actorID(r), note)
	})
}

func (h *Handler) rejectSale(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "sale.reject", func(id int64, note string) (*Sale, error) {
		return h.service.Reject(r.Context(), id, actorID(r), note)
	})
}

func (h *Handler) voidSale(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "sale.void", func(id int64, note string) (*Sale, error) {
		return h.service.Void(r.Context(), id, actorID(r), note)
	})
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, auditAction string, fn func(int64, string) (*Sale, error)) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	sale, err := fn(id, req.Note)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		h.logger.Error(auditAction, slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, auditAction, sale.Number, nil)
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "sale.delete", strconv.FormatInt(id, 10), nil)
	httpx.NoContent(w)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summarize(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("sales summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "NUSAPOS %s\n", sale.OutletCode)
	fmt.Fprintf(w, "%s  %s\n\n", sale.Number, sale.SoldAt.Format("02 Jan 2006 15:04"))
	for _, line := range sale.Lines {
		h.printer.Fprintf(w, "%s x%.0f  Rp %.0f\n", line.Name, line.Qty, line.LineTotal)
	}
	h.printer.Fprintf(w, "\nSubtotal  Rp %.0f\n", sale.Subtotal)
	h.printer.Fprintf(w, "Diskon    Rp %.0f\n", sale.Discount)
	h.printer.Fprintf(w, "Pajak     Rp %.0f\n", sale.Tax)
	h.printer.Fprintf(w, "Total     Rp %.0f\n", sale.Total)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Export(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("export sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sales.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"number", "status", "outlet", "cashier", "sold_at", "subtotal", "discount", "tax", "total"})
	for _, s := range rows {
		_ = cw.Write([]string{
			s.Number,
			string(s.Status),
			s.OutletCode,
			s.CashierName,
			s.SoldAt.Format(time.RFC3339),
			h.printer.Sprintf("%.2f", s.Subtotal),
			h.printer.Sprintf("%.2f", s.Discount),
			h.printer.Sprintf("%.2f", s.Tax),
			h.printer.Sprintf("%.2f", s.Total),
		})
	}
	cw.Flush()
	h.recordAudit(r, "sale.export", "", map[string]any{"rows": len(rows)})
}

func saleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return 0, false
	}
	return id, true
}

func filterFromQuery(r *http.Request) SaleFilter {
	q := r.URL.Query()
	f := SaleFilter{
		Status:     SaleStatus(q.Get("status")),
		OutletCode: q.Get("outlet"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return f
}

func actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func (h *Handler) recordAudit(r *http.Request, action, entityID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actorID(r),
		Action:   action,
		Entity:   "sale",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
	}
}
