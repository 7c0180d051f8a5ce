package delta

import (
	"time"

	"github.com/google/uuid"
)

// Requests

type TransferRequest struct {
	RecipientEmail string `json:"recipient_email" validate:"required,email"`
	Amount         string `json:"amount" validate:"required,delta_amount"`
	Description    string `json:"description" validate:"max=500"`
}

type PurchaseRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=1000"`
}

type StatementRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type AdjustRequest struct {
	Direction   string `json:"direction" validate:"required,oneof=add deduct"`
	Amount      string `json:"amount" validate:"required,delta_amount"`
	Description string `json:"description" validate:"max=500"`
}

type ReverseRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type RuleRequest struct {
	Description string                 `json:"description" validate:"max=500"`
	Amount      string                 `json:"amount" validate:"required"`
	IsActive    *bool                  `json:"is_active"`
	Conditions  map[string]interface{} `json:"conditions"`
}

type ProductRequest struct {
	Name              string                 `json:"name" validate:"required,max=200"`
	Description       string                 `json:"description"`
	ProductType       string                 `json:"product_type" validate:"required,product_type"`
	Price             string                 `json:"price" validate:"required,delta_amount"`
	IsAvailable       *bool                  `json:"is_available"`
	IsLimited         bool                   `json:"is_limited"`
	QuantityAvailable *int                   `json:"quantity_available" validate:"omitempty,gte=0"`
	Icon              string                 `json:"icon" validate:"max=100"`
	Metadata          map[string]interface{} `json:"metadata"`
}

type ProductPatchRequest struct {
	Name              *string                `json:"name" validate:"omitempty,max=200"`
	Description       *string                `json:"description"`
	ProductType       *string                `json:"product_type" validate:"omitempty,product_type"`
	Price             *string                `json:"price" validate:"omitempty,delta_amount"`
	IsAvailable       *bool                  `json:"is_available"`
	IsLimited         *bool                  `json:"is_limited"`
	QuantityAvailable *int                   `json:"quantity_available" validate:"omitempty,gte=0"`
	Icon              *string                `json:"icon" validate:"omitempty,max=100"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// Responses

type BalanceResponse struct {
	Balance          string `json:"balance"`
	FormattedBalance string `json:"formatted_balance"`
	TotalEarned      string `json:"total_earned"`
	TotalSpent       string `json:"total_spent"`
	IsActive         bool   `json:"is_active"`
	IsFrozen         bool   `json:"is_frozen"`
}

func NewBalanceResponse(w *Wallet) BalanceResponse {
	return BalanceResponse{
		Balance:          w.Balance.StringFixed(2),
		FormattedBalance: Format(w.Balance),
		TotalEarned:      w.TotalEarned.StringFixed(2),
		TotalSpent:       w.TotalSpent.StringFixed(2),
		IsActive:         w.IsActive,
		IsFrozen:         w.IsFrozen,
	}
}

type WalletResponse struct {
	ID                   uuid.UUID `json:"id"`
	UserID               uuid.UUID `json:"user_id"`
	Balance              string    `json:"balance"`
	FormattedBalance     string    `json:"formatted_balance"`
	TotalEarned          string    `json:"total_earned"`
	FormattedTotalEarned string    `json:"formatted_total_earned"`
	TotalSpent           string    `json:"total_spent"`
	FormattedTotalSpent  string    `json:"formatted_total_spent"`
	IsActive             bool      `json:"is_active"`
	IsFrozen             bool      `json:"is_frozen"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func NewWalletResponse(w *Wallet) WalletResponse {
	return WalletResponse{
		ID:                   w.ID,
		UserID:               w.UserID,
		Balance:              w.Balance.StringFixed(2),
		FormattedBalance:     Format(w.Balance),
		TotalEarned:          w.TotalEarned.StringFixed(2),
		FormattedTotalEarned: Format(w.TotalEarned),
		TotalSpent:           w.TotalSpent.StringFixed(2),
		FormattedTotalSpent:  Format(w.TotalSpent),
		IsActive:             w.IsActive,
		IsFrozen:             w.IsFrozen,
		CreatedAt:            w.CreatedAt,
		UpdatedAt:            w.UpdatedAt,
	}
}

type TransactionResponse struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	WalletUser       string            `json:"wallet_user,omitempty"`
	TransactionType  TransactionType   `json:"transaction_type"`
	Amount           string            `json:"amount"`
	FormattedAmount  string            `json:"formatted_amount"`
	BalanceBefore    string            `json:"balance_before"`
	BalanceAfter     string            `json:"balance_after"`
	Status           TransactionStatus `json:"status"`
	RelatedUserID    *uuid.UUID        `json:"related_user_id,omitempty"`
	RelatedUserEmail string            `json:"related_user_email,omitempty"`
	ReferenceID      *string           `json:"reference_id"`
	ReferenceType    *string           `json:"reference_type"`
	Description      string            `json:"description"`
	Metadata         JSONMap           `json:"metadata"`
	IsReversed       bool              `json:"is_reversed"`
	ReversedByID     *uuid.UUID        `json:"reversed_by_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// NewTransactionResponse renders t. emails may be nil.
func NewTransactionResponse(t *Transaction, emails map[uuid.UUID]string) TransactionResponse {
	resp := TransactionResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		WalletUser:      emails[t.UserID],
		TransactionType: t.Type,
		Amount:          t.Amount.StringFixed(2),
		FormattedAmount: Format(t.Amount),
		BalanceBefore:   t.BalanceBefore.StringFixed(2),
		BalanceAfter:    t.BalanceAfter.StringFixed(2),
		Status:          t.Status,
		RelatedUserID:   t.RelatedUserID,
		ReferenceID:     t.ReferenceID,
		ReferenceType:   t.ReferenceType,
		Description:     t.Description,
		Metadata:        t.Metadata,
		IsReversed:      t.IsReversed,
		ReversedByID:    t.ReversedByID,
		CreatedAt:       t.CreatedAt,
	}
	if resp.Metadata == nil {
		resp.Metadata = JSONMap{}
	}
	if t.RelatedUserID != nil {
		resp.RelatedUserEmail = emails[*t.RelatedUserID]
	}
	return resp
}

func NewTransactionResponses(txs []Transaction, emails map[uuid.UUID]string) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		out = append(out, NewTransactionResponse(&txs[i], emails))
	}
	return out
}

type ProductResponse struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	ProductType       ProductType `json:"product_type"`
	Price             string      `json:"price"`
	FormattedPrice    string      `json:"formatted_price"`
	IsAvailable       bool        `json:"is_available"`
	IsLimited         bool        `json:"is_limited"`
	QuantityAvailable *int        `json:"quantity_available"`
	Icon              string      `json:"icon"`
	Metadata          JSONMap     `json:"metadata"`
	CreatedAt         time.Time   `json:"created_at"`
}

func NewProductResponse(p *Product) ProductResponse {
	md := p.Metadata
	if md == nil {
		md = JSONMap{}
	}
	return ProductResponse{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		ProductType:       p.Type,
		Price:             p.Price.StringFixed(2),
		FormattedPrice:    Format(p.Price),
		IsAvailable:       p.IsAvailable,
		IsLimited:         p.IsLimited,
		QuantityAvailable: p.QuantityAvailable,
		Icon:              p.Icon,
		Metadata:          md,
		CreatedAt:         p.CreatedAt,
	}
}

func NewProductResponses(products []Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, NewProductResponse(&products[i]))
	}
	return out
}

type PurchaseResponse struct {
	ID              uuid.UUID            `json:"id"`
	ProductName     string               `json:"product_name"`
	ProductData     *ProductResponse     `json:"product_data,omitempty"`
	TransactionData *TransactionResponse `json:"transaction_data,omitempty"`
	Quantity        int                  `json:"quantity"`
	TotalPrice      string               `json:"total_price"`
	IsActive        bool                 `json:"is_active"`
	PurchasedAt     time.Time            `json:"purchased_at"`
}

func NewPurchaseResponse(p *Purchase) PurchaseResponse {
	resp := PurchaseResponse{
		ID:          p.ID,
		Quantity:    p.Quantity,
		TotalPrice:  p.TotalPrice.StringFixed(2),
		IsActive:    p.IsActive,
		PurchasedAt: p.PurchasedAt,
	}
	if p.Product != nil {
		product := NewProductResponse(p.Product)
		resp.ProductName = p.Product.Name
		resp.ProductData = &product
	}
	if p.Transaction != nil {
		tx := NewTransactionResponse(p.Transaction, nil)
		resp.TransactionData = &tx
	}
	return resp
}

type RuleResponse struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Amount          string    `json:"amount"`
	FormattedAmount string    `json:"formatted_amount"`
	IsActive        bool      `json:"is_active"`
	Conditions      JSONMap   `json:"conditions"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewRuleResponses(rules []EarningRule) []RuleResponse {
	out := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		conditions := r.Conditions
		if conditions == nil {
			conditions = JSONMap{}
		}
		out = append(out, RuleResponse{
			Name:            r.Name,
			Description:     r.Description,
			Amount:          r.Amount.StringFixed(2),
			FormattedAmount: Format(r.Amount),
			IsActive:        r.IsActive,
			Conditions:      conditions,
			UpdatedAt:       r.UpdatedAt,
		})
	}
	return out
}

type TransferResponse struct {
	Sent     TransactionResponse `json:"sent"`
	Received TransactionResponse `json:"received"`
}

type WalletSummaryResponse struct {
	Wallet             WalletResponse        `json:"wallet"`
	RecentTransactions []TransactionResponse `json:"recent_transactions"`
	TotalTransactions  int                   `json:"total_transactions"`
}
