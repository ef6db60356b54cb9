package purchasing

import (
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

// Handler wires HTTP endpoints for purchasing.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     *shared.AuditLogger
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs purchasing handler.
func NewHandler(logger *slog.Logger, service *Service, audit *shared.AuditLogger, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, audit: audit, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModulePurchase, rbac.ActionRead)))
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModulePurchase, rbac.ActionCreate)))
		r.Post("/", h.createOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModulePurchase, rbac.ActionUpdate)))
		r.Post("/{id}/receive", h.receiveOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModulePurchase, rbac.ActionApprove)))
		r.Post("/{id}/approve", h.approveOrder)
		r.Post("/{id}/reject", h.rejectOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermissionKey(rbac.ModulePurchase, rbac.ActionDelete)))
		r.Delete("/{id}", h.deleteOrder)
	})
}

type orderLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitCost  float64 `json:"unit_cost" validate:"gte=0"`
}

type createOrderRequest struct {
	SupplierName string             `json:"supplier_name" validate:"required"`
	OutletCode   string             `json:"outlet_code" validate:"required"`
	Note         string             `json:"note"`
	Lines        []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type reviewRequest struct {
	Note string `json:"note"`
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := OrderFilter{
		Status:     OrderStatus(q.Get("status")),
		OutletCode: q.Get("outlet"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	orders, total, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"pagination": shared.NewPagination(f.Page, f.PerPage, int(total)),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateOrderInput{
		SupplierName: req.SupplierName,
		OutletCode:   req.OutletCode,
		Note:         req.Note,
	}
	for _, lr := range req.Lines {
		in.Lines = append(in.Lines, CreateOrderLine(lr))
	}
	order, err := h.service.Create(r.Context(), in, actorID(r))
	if err != nil {
		if errors.Is(err, ErrEmptyOrder) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "purchase.create", order.Number, nil)
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) approveOrder(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "purchase.approve", func(id int64, note string) (*Order, error) {
		return h.service.Approve(r.Context(), id, actorID(r), note)
	})
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "purchase.reject", func(id int64, note string) (*Order, error) {
		return h.service.Reject(r.Context(), id, actorID(r), note)
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "purchase.cancel", func(id int64, note string) (*Order, error) {
		return h.service.Cancel(r.Context(), id, actorID(r), note)
	})
}

func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "purchase.receive", func(id int64, _ string) (*Order, error) {
		return h.service.Receive(r.Context(), id, actorID(r))
	})
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, auditAction string, fn func(int64, string) (*Order, error)) {
	id, ok := orderID(w, r)
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
	order, err := fn(id, req.Note)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		h.logger.Error(auditAction, slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, auditAction, order.Number, nil)
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
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
	h.recordAudit(r, "purchase.delete", strconv.FormatInt(id, 10), nil)
	httpx.NoContent(w)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
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
		Entity:   "purchase_order",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
	}
}
