package delta

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dsatschool/delta-api/internal/middleware"
	"github.com/dsatschool/delta-api/internal/pkg/errorhandler"
	"github.com/dsatschool/delta-api/internal/pkg/response"
	"github.com/dsatschool/delta-api/internal/pkg/validator"
)

// AdminHandler serves wallet administration
type AdminHandler struct {
	service *Service
}

func NewAdminHandler(service *Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// Routes returns the /api/admin/delta router
func (h *AdminHandler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Route("/wallets/{userID}", func(r chi.Router) {
		r.Post("/freeze", h.setFlag(func(ctx context.Context, id uuid.UUID) (*Wallet, error) {
			return h.service.SetFrozen(ctx, id, true)
		}))
		r.Post("/unfreeze", h.setFlag(func(ctx context.Context, id uuid.UUID) (*Wallet, error) {
			return h.service.SetFrozen(ctx, id, false)
		}))
		r.Post("/activate", h.setFlag(func(ctx context.Context, id uuid.UUID) (*Wallet, error) {
			return h.service.SetActive(ctx, id, true)
		}))
		r.Post("/deactivate", h.setFlag(func(ctx context.Context, id uuid.UUID) (*Wallet, error) {
			return h.service.SetActive(ctx, id, false)
		}))
		r.Post("/adjust", h.Adjust)
	})

	r.Get("/transactions", h.Search)
	r.Post("/transactions/{id}/reverse", h.Reverse)

	r.Get("/rules", h.Rules)
	r.Put("/rules/{name}", h.PutRule)

	r.Post("/products", h.CreateProduct)
	r.Patch("/products/{id}", h.UpdateProduct)

	return r
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	errorhandler.Handle(r.Context(), w, err, HTTPErrorRules)
}

func (h *AdminHandler) setFlag(apply func(ctx context.Context, userID uuid.UUID) (*Wallet, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			response.BadRequest(w, "Invalid user ID")
			return
		}
		wallet, err := apply(r.Context(), userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.OK(w, NewWalletResponse(wallet))
	}
}

// Adjust handles POST /admin/delta/wallets/{userID}/adjust
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req AdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}
	amount, _ := decimal.NewFromString(strings.TrimSpace(req.Amount))

	t, err := h.service.AdminAdjust(r.Context(), middleware.GetUserID(r.Context()), userID, req.Direction, amount, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, NewTransactionResponse(t, nil))
}

// Reverse handles POST /admin/delta/transactions/{id}/reverse
func (h *AdminHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction ID")
		return
	}

	var req ReverseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	actor := middleware.GetUserID(r.Context())
	t, err := h.service.Reverse(r.Context(), txID, strings.TrimSpace(req.Reason), &actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, NewTransactionResponse(t, nil))
}

// Search handles GET /admin/delta/transactions
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filters SearchFilters

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid user_id")
			return
		}
		filters.UserID = &id
	}
	if v := q.Get("type"); v != "" {
		filters.Type = &v
	}
	if v := q.Get("status"); v != "" {
		filters.Status = &v
	}
	if v := q.Get("reference_id"); v != "" {
		filters.ReferenceID = &v
	}
	if v := q.Get("reference_type"); v != "" {
		filters.ReferenceType = &v
	}
	if v := q.Get("date_from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			response.BadRequest(w, "Invalid date_from")
			return
		}
		filters.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			response.BadRequest(w, "Invalid date_to")
			return
		}
		filters.DateTo = &t
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	txs, err := h.service.SearchTransactions(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	emails, err := h.service.Emails(r.Context(), txs...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewTransactionResponses(txs, emails))
}

// Rules handles GET /admin/delta/rules
func (h *AdminHandler) Rules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListAllRules(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewRuleResponses(rules))
}

// PutRule handles PUT /admin/delta/rules/{name}
func (h *AdminHandler) PutRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		response.ValidationError(w, map[string]string{"amount": "Invalid amount"})
		return
	}

	rule := &EarningRule{
		Name:        chi.URLParam(r, "name"),
		Description: req.Description,
		Amount:      amount,
		IsActive:    req.IsActive == nil || *req.IsActive,
		Conditions:  JSONMap(req.Conditions),
	}
	if err := h.service.UpsertRule(r.Context(), rule); err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewRuleResponses([]EarningRule{*rule})[0])
}

// CreateProduct handles POST /admin/delta/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}
	price, _ := decimal.NewFromString(strings.TrimSpace(req.Price))

	p := &Product{
		Name:              strings.TrimSpace(req.Name),
		Description:       req.Description,
		Type:              ProductType(req.ProductType),
		Price:             price,
		IsAvailable:       req.IsAvailable == nil || *req.IsAvailable,
		IsLimited:         req.IsLimited,
		QuantityAvailable: req.QuantityAvailable,
		Icon:              req.Icon,
		Metadata:          JSONMap(req.Metadata),
	}
	if err := h.service.CreateProduct(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, NewProductResponse(p))
}

// UpdateProduct handles PATCH /admin/delta/products/{id}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid product ID")
		return
	}

	var req ProductPatchRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	patch := ProductPatch{
		Name:              req.Name,
		Description:       req.Description,
		IsAvailable:       req.IsAvailable,
		IsLimited:         req.IsLimited,
		QuantityAvailable: req.QuantityAvailable,
		Icon:              req.Icon,
		Metadata:          JSONMap(req.Metadata),
	}
	if req.ProductType != nil {
		pt := ProductType(*req.ProductType)
		patch.Type = &pt
	}
	if req.Price != nil {
		price, _ := decimal.NewFromString(strings.TrimSpace(*req.Price))
		patch.Price = &price
	}

	p, err := h.service.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewProductResponse(p))
}
