package delta

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Symbol is appended to formatted amounts.
const Symbol = "Δ"

// TransactionType classifies a ledger row
type TransactionType string

const (
	TxEarn        TransactionType = "earn"
	TxSpend       TransactionType = "spend"
	TxTransfer    TransactionType = "transfer"
	TxRefund      TransactionType = "refund"
	TxBonus       TransactionType = "bonus"
	TxAdminAdd    TransactionType = "admin_add"
	TxAdminDeduct TransactionType = "admin_deduct"
	TxReversal    TransactionType = "reversal"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TxEarn, TxSpend, TxTransfer, TxRefund, TxBonus, TxAdminAdd, TxAdminDeduct, TxReversal:
		return true
	}
	return false
}

// TransactionStatus of a ledger row
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusReversed  TransactionStatus = "reversed"
)

// ProductType categorizes shop items
type ProductType string

const (
	ProductFeature  ProductType = "feature"
	ProductContent  ProductType = "content"
	ProductBadge    ProductType = "badge"
	ProductBoost    ProductType = "boost"
	ProductCosmetic ProductType = "cosmetic"
	ProductOther    ProductType = "other"
)

// Valid reports whether p is a known product type
func (p ProductType) Valid() bool {
	switch p {
	case ProductFeature, ProductContent, ProductBadge, ProductBoost, ProductCosmetic, ProductOther:
		return true
	}
	return false
}

// Reference types written by the ledger itself.
const (
	RefTransactionReversal = "transaction_reversal"
	RefProductPurchase     = "product_purchase"
	RefTransfer            = "transfer"
)

// Wallet is the per-user balance record
type Wallet struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	TotalEarned decimal.Decimal `db:"total_earned" json:"total_earned"`
	TotalSpent  decimal.Decimal `db:"total_spent" json:"total_spent"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	IsFrozen    bool            `db:"is_frozen" json:"is_frozen"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// FormattedBalance renders the balance with the coin symbol
func (w *Wallet) FormattedBalance() string {
	return Format(w.Balance)
}

// Transaction is an immutable ledger entry
type Transaction struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	WalletID       uuid.UUID         `db:"wallet_id" json:"wallet_id"`
	UserID         uuid.UUID         `db:"user_id" json:"user_id"`
	Type           TransactionType   `db:"transaction_type" json:"transaction_type"`
	Amount         decimal.Decimal   `db:"amount" json:"amount"`
	BalanceBefore  decimal.Decimal   `db:"balance_before" json:"balance_before"`
	BalanceAfter   decimal.Decimal   `db:"balance_after" json:"balance_after"`
	Status         TransactionStatus `db:"status" json:"status"`
	RelatedUserID  *uuid.UUID        `db:"related_user_id" json:"related_user_id,omitempty"`
	ReferenceID    *string           `db:"reference_id" json:"reference_id,omitempty"`
	ReferenceType  *string           `db:"reference_type" json:"reference_type,omitempty"`
	IdempotencyKey *string           `db:"idempotency_key" json:"-"`
	Description    string            `db:"description" json:"description"`
	Metadata       JSONMap           `db:"metadata" json:"metadata"`
	IsReversed     bool              `db:"is_reversed" json:"is_reversed"`
	ReversedByID   *uuid.UUID        `db:"reversed_by_id" json:"reversed_by_id,omitempty"`
	CreatedByID    *uuid.UUID        `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}

// IsCredit reports whether the row increased the wallet balance
func (t *Transaction) IsCredit() bool {
	return t.BalanceAfter.GreaterThan(t.BalanceBefore)
}

// SignedAmount is positive for credits and negative for debits
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// EarningRule configures an award
type EarningRule struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	Conditions  JSONMap         `db:"conditions" json:"conditions"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Product is a purchasable item
type Product struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Description       string          `db:"description" json:"description"`
	Type              ProductType     `db:"product_type" json:"product_type"`
	Price             decimal.Decimal `db:"price" json:"price"`
	IsAvailable       bool            `db:"is_available" json:"is_available"`
	IsLimited         bool            `db:"is_limited" json:"is_limited"`
	QuantityAvailable *int            `db:"quantity_available" json:"quantity_available,omitempty"`
	Icon              string          `db:"icon" json:"icon"`
	Metadata          JSONMap         `db:"metadata" json:"metadata"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Purchase pairs a spend transaction with a product
type Purchase struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	ProductID     uuid.UUID       `db:"product_id" json:"product_id"`
	TransactionID uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	TotalPrice    decimal.Decimal `db:"total_price" json:"total_price"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	PurchasedAt   time.Time       `db:"purchased_at" json:"purchased_at"`

	Product     *Product     `db:"-" json:"product,omitempty"`
	Transaction *Transaction `db:"-" json:"transaction,omitempty"`
}

// LeaderboardRow is one ranked wallet
type LeaderboardRow struct {
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Email       string          `db:"email" json:"email"`
	TotalEarned decimal.Decimal `db:"total_earned" json:"total_earned"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
}

// Format renders an amount with two decimals and the coin symbol
func Format(d decimal.Decimal) string {
	return d.StringFixed(2) + " " + Symbol
}

// JSONMap is a JSONB object column
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonmap: unsupported source %T", src)
	}
	out := JSONMap{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}
