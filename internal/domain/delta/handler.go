package delta

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dsatschool/delta-api/internal/domain/user"
	"github.com/dsatschool/delta-api/internal/middleware"
	"github.com/dsatschool/delta-api/internal/pkg/errorhandler"
	"github.com/dsatschool/delta-api/internal/pkg/response"
	"github.com/dsatschool/delta-api/internal/pkg/validator"
)

// Handler serves the user-facing ledger endpoints
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the /api/delta router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/balance", h.Balance)
	r.Get("/wallet", h.Wallet)
	r.Get("/transactions", h.Transactions)
	r.Post("/transfer", h.Transfer)
	r.Get("/products", h.Products)
	r.Post("/purchase", h.Purchase)
	r.Get("/purchases", h.Purchases)
	r.Get("/leaderboard", h.Leaderboard)
	r.Get("/rules", h.Rules)
	r.Post("/statements", h.Statement)

	return r
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	errorhandler.Handle(r.Context(), w, err, HTTPErrorRules)
}

// Balance handles GET /delta/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.service.GetOrCreateWallet(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewBalanceResponse(wallet))
}

// Wallet handles GET /delta/wallet
func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetWalletSummary(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	emails, err := h.service.Emails(r.Context(), summary.Recent...)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.OK(w, WalletSummaryResponse{
		Wallet:             NewWalletResponse(summary.Wallet),
		RecentTransactions: NewTransactionResponses(summary.Recent, emails),
		TotalTransactions:  summary.TotalTransactions,
	})
}

// Transactions handles GET /delta/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageFromQuery(r)

	filter := TransactionFilter{Type: TransactionType(q.Get("type"))}
	if v := q.Get("start_date"); v != "" {
		from, err := parseDate(v)
		if err != nil {
			response.BadRequest(w, "Invalid start_date")
			return
		}
		filter.From = &from
	}
	if v := q.Get("end_date"); v != "" {
		to, err := parseDate(v)
		if err != nil {
			response.BadRequest(w, "Invalid end_date")
			return
		}
		to = endOfRange(v, to)
		filter.To = &to
	}

	txs, total, err := h.service.ListTransactions(r.Context(), middleware.GetUserID(r.Context()), page, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	emails, err := h.service.Emails(r.Context(), txs...)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page = page.Normalize()
	response.WithMeta(w, NewTransactionResponses(txs, emails), response.NewMeta(total, page.Number, page.Size))
}

// Transfer handles POST /delta/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
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
	senderID := middleware.GetUserID(r.Context())

	recipient, err := h.service.Users().GetByEmail(r.Context(), user.NormalizeEmail(req.RecipientEmail))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if recipient == nil {
		response.NotFound(w, "Recipient not found")
		return
	}

	sent, received, err := h.service.Transfer(r.Context(), senderID, recipient.ID, amount, strings.TrimSpace(req.Description))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	emails, err := h.service.Emails(r.Context(), *sent, *received)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, TransferResponse{
		Sent:     NewTransactionResponse(sent, emails),
		Received: NewTransactionResponse(received, emails),
	})
}

// Products handles GET /delta/products
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), ProductType(r.URL.Query().Get("type")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewProductResponses(products))
}

// Purchase handles POST /delta/purchase
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	productID, _ := uuid.Parse(req.ProductID)

	purchase, err := h.service.Purchase(r.Context(), middleware.GetUserID(r.Context()), productID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, NewPurchaseResponse(purchase))
}

// Purchases handles GET /delta/purchases
func (h *Handler) Purchases(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	purchases, total, err := h.service.ListPurchases(r.Context(), middleware.GetUserID(r.Context()), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]PurchaseResponse, 0, len(purchases))
	for i := range purchases {
		out = append(out, NewPurchaseResponse(&purchases[i]))
	}
	page = page.Normalize()
	response.WithMeta(w, out, response.NewMeta(total, page.Number, page.Size))
}

// Leaderboard handles GET /delta/leaderboard
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.Leaderboard(r.Context(), limit, middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, entries)
}

// Rules handles GET /delta/rules
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewRuleResponses(rules))
}

// Statement handles POST /delta/statements
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		response.ValidationError(w, map[string]string{"from": "Use YYYY-MM-DD or RFC3339"})
		return
	}
	to, err := parseDate(req.To)
	if err != nil {
		response.ValidationError(w, map[string]string{"to": "Use YYYY-MM-DD or RFC3339"})
		return
	}
	to = endOfRange(req.To, to)

	link, err := h.service.ExportStatement(r.Context(), middleware.GetUserID(r.Context()), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, link)
}

func pageFromQuery(r *http.Request) Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return Page{Number: number, Size: size}
}

// parseDate accepts a calendar date (UTC midnight) or an RFC3339 timestamp.
// endOfRange makes a plain YYYY-MM-DD end date inclusive; timestamps are kept as given.
func endOfRange(raw string, t time.Time) time.Time {
	if len(strings.TrimSpace(raw)) == len("2006-01-02") {
		return t.AddDate(0, 0, 1)
	}
	return t
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
