package inventory

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nusapos/nusapos/internal/platform/httpx"
	"github.com/nusapos/nusapos/internal/rbac"
	"github.com/nusapos/nusapos/internal/shared"
)

// Handler wires HTTP endpoints for inventory.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     *shared.AuditLogger
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, audit *shared.AuditLogger, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, audit: audit, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleInventory, rbac.ActionRead)))
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/products/{id}/adjustments", h.history)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleInventory, rbac.ActionCreate)))
		r.Post("/products", h.createProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleInventory, rbac.ActionUpdate)))
		r.Put("/products/{id}", h.updateProduct)
		r.Post("/products/{id}/adjust", h.adjust)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleInventory, rbac.ActionDelete)))
		r.Delete("/products/{id}", h.deleteProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModuleInventory, rbac.ActionExport)))
		r.Get("/products/export", h.exportCSV)
	})
}

type productRequest struct {
	SKU      string  `json:"sku" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category"`
	Unit     string  `json:"unit"`
	Price    float64 `json:"price" validate:"gte=0"`
	Stock    float64 `json:"stock" validate:"gte=0"`
	MinStock float64 `json:"min_stock" validate:"gte=0"`
	IsActive *bool   `json:"is_active"`
}

type adjustRequest struct {
	Delta  float64 `json:"delta" validate:"required"`
	Reason string  `json:"reason" validate:"required"`
	Note   string  `json:"note"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ProductFilter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		LowStock: q.Get("low_stock") == "true",
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	products, total, err := h.service.ListProducts(r.Context(), f)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   products,
		"pagination": shared.NewPagination(f.Page, f.PerPage, int(total)),
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p := Product{
		SKU:      req.SKU,
		Name:     req.Name,
		Category: req.Category,
		Unit:     req.Unit,
		Price:    req.Price,
		Stock:    req.Stock,
		MinStock: req.MinStock,
	}
	if err := h.service.CreateProduct(r.Context(), &p); err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "product.create", p.SKU, nil)
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	existing, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	existing.Name = req.Name
	existing.Category = req.Category
	if req.Unit != "" {
		existing.Unit = req.Unit
	}
	existing.Price = req.Price
	existing.MinStock = req.MinStock
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if err := h.service.UpdateProduct(r.Context(), existing); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "product.update", existing.SKU, nil)
	httpx.JSON(w, http.StatusOK, existing)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "product.delete", strconv.FormatInt(id, 10), nil)
	httpx.NoContent(w)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	adj := Adjustment{
		ProductID: id,
		Delta:     req.Delta,
		Reason:    AdjustmentReason(req.Reason),
		Note:      req.Note,
		ActorID:   actorID(r),
	}
	if err := h.service.Adjust(r.Context(), &adj); err != nil {
		switch {
		case errors.Is(err, ErrUnknownReason), errors.Is(err, ErrZeroDelta):
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		case errors.Is(err, ErrInsufficientStock):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		default:
			h.logger.Error("adjust stock", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	h.recordAudit(r, "product.adjust", strconv.FormatInt(id, 10), map[string]any{
		"delta":  req.Delta,
		"reason": req.Reason,
	})
	httpx.JSON(w, http.StatusCreated, adj)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	adjs, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"adjustments": adjs})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	products, _, err := h.service.ListProducts(r.Context(), ProductFilter{PerPage: 10000})
	if err != nil {
		h.logger.Error("export products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"sku", "name", "category", "unit", "price", "stock", "min_stock", "active"})
	for _, p := range products {
		_ = cw.Write([]string{
			p.SKU, p.Name, p.Category, p.Unit,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			strconv.FormatFloat(p.Stock, 'f', 2, 64),
			strconv.FormatFloat(p.MinStock, 'f', 2, 64),
			strconv.FormatBool(p.IsActive),
		})
	}
	cw.Flush()
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return 0, false
	}
	return id, true
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
		Entity:   "product",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
	}
}
