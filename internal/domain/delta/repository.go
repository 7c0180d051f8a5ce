package delta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dsatschool/delta-api/internal/pkg/database"
)

const queryTimeout = 5 * time.Second

const walletColumns = `id, user_id, balance, total_earned, total_spent, is_active, is_frozen, created_at, updated_at`

const txColumns = `t.id, t.wallet_id, w.user_id, t.transaction_type, t.amount, t.balance_before, t.balance_after,
	t.status, t.related_user_id, t.reference_id, t.reference_type, t.idempotency_key, t.description,
	t.metadata, t.is_reversed, t.reversed_by_id, t.created_by_id, t.created_at`

const txFrom = ` FROM delta_transactions t JOIN delta_wallets w ON w.id = t.wallet_id`

const ruleColumns = `id, name, description, amount, is_active, conditions, created_at, updated_at`

const productColumns = `id, name, description, product_type, price, is_available, is_limited,
	quantity_available, icon, metadata, created_at, updated_at`

const purchaseColumns = `id, user_id, product_id, transaction_id, quantity, total_price, is_active, purchased_at`

// TransactionFilter narrows a user's history
type TransactionFilter struct {
	Type   TransactionType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// SearchFilters are the admin-side transaction filters
type SearchFilters struct {
	UserID        *uuid.UUID
	Type          *string
	Status        *string
	ReferenceID   *string
	ReferenceType *string
	DateFrom      *time.Time
	DateTo        *time.Time
	Limit         int
	Offset        int
}

// Repository is the Postgres store for wallets, transactions, rules, products and purchases.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the pool so callers can open transactions for AddTx/DeductTx.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	return tx, nil
}

// Wallets

func (r *Repository) EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx2, `
		INSERT INTO delta_wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		if database.PQCode(err) == database.SQLStateForeignKeyViolation {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: ensure wallet", ErrInternal)
	}

	var w Wallet
	if err := r.db.GetContext(ctx2, &w, `SELECT `+walletColumns+` FROM delta_wallets WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("%w: get wallet", ErrInternal)
	}
	return &w, nil
}

// GetWallet returns the wallet or nil when the user has none yet
func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx2, &w, `SELECT `+walletColumns+` FROM delta_wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get wallet", ErrInternal)
	}
	return &w, nil
}

// lockWallet creates the wallet if needed and takes its row lock.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO delta_wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		if database.PQCode(err) == database.SQLStateForeignKeyViolation {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: ensure wallet", ErrInternal)
	}

	var w Wallet
	if err := tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM delta_wallets WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return nil, fmt.Errorf("%w: lock wallet", ErrInternal)
	}
	return &w, nil
}

func (r *Repository) lockWalletByID(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM delta_wallets WHERE id = $1 FOR UPDATE`, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock wallet", ErrInternal)
	}
	return &w, nil
}

func (r *Repository) saveBalances(ctx context.Context, tx *sqlx.Tx, w *Wallet) error {
	err := tx.QueryRowxContext(ctx, `
		UPDATE delta_wallets
		SET balance = $2, total_earned = $3, total_spent = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, w.ID, w.Balance, w.TotalEarned, w.TotalSpent).Scan(&w.UpdatedAt)
	if err != nil {
		if database.PQCode(err) == database.SQLStateNumericOverflow {
			return ErrAmountTooLarge
		}
		return fmt.Errorf("%w: update wallet balance", ErrInternal)
	}
	return nil
}

// SetWalletFlags updates is_frozen and/or is_active, creating the wallet first.
func (r *Repository) SetWalletFlags(ctx context.Context, userID uuid.UUID, frozen, active *bool) (*Wallet, error) {
	if _, err := r.EnsureWallet(ctx, userID); err != nil {
		return nil, err
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx2, &w, `
		UPDATE delta_wallets
		SET is_frozen = COALESCE($2, is_frozen),
		    is_active = COALESCE($3, is_active),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+walletColumns, userID, frozen, active)
	if err != nil {
		return nil, fmt.Errorf("%w: update wallet flags", ErrInternal)
	}
	return &w, nil
}

// Transactions

func (r *Repository) findByIdempotencyKey(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, key string) (*Transaction, error) {
	var t Transaction
	err := tx.GetContext(ctx, &t, `SELECT `+txColumns+txFrom+` WHERE t.wallet_id = $1 AND t.idempotency_key = $2`, walletID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup idempotency key", ErrInternal)
	}
	return &t, nil
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}
	if t.Metadata == nil {
		t.Metadata = JSONMap{}
	}

	err := tx.QueryRowxContext(ctx, `
		INSERT INTO delta_transactions (
			id, wallet_id, transaction_type, amount, balance_before, balance_after, status,
			related_user_id, reference_id, reference_type, idempotency_key, description,
			metadata, created_by_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`, t.ID, t.WalletID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter, t.Status,
		t.RelatedUserID, t.ReferenceID, t.ReferenceType, t.IdempotencyKey, t.Description,
		t.Metadata, t.CreatedByID).Scan(&t.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "delta_transactions_idempotency_key") {
			return ErrIdempotencyConflict
		}
		if database.PQCode(err) == database.SQLStateNumericOverflow {
			return ErrAmountTooLarge
		}
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}

func (r *Repository) lockTransaction(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := tx.GetContext(ctx, &t, `SELECT `+txColumns+txFrom+` WHERE t.id = $1 FOR UPDATE OF t`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock transaction", ErrInternal)
	}
	return &t, nil
}

func (r *Repository) markReversed(ctx context.Context, tx *sqlx.Tx, id, reversedBy uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE delta_transactions SET is_reversed = TRUE, reversed_by_id = $2 WHERE id = $1
	`, id, reversedBy); err != nil {
		return fmt.Errorf("%w: mark reversed", ErrInternal)
	}
	return nil
}

// GetTransaction returns the row or ErrTransactionNotFound
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `SELECT `+txColumns+txFrom+` WHERE t.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction", ErrInternal)
	}
	return &t, nil
}

// ListTransactions returns one page of a user's history, newest first, and the filtered total.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, f TransactionFilter) ([]Transaction, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := ` WHERE w.user_id = $1`
	args := []interface{}{userID}
	idx := 2

	if f.Type != "" {
		where += fmt.Sprintf(" AND t.transaction_type = $%d", idx)
		args = append(args, f.Type)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND t.created_at >= $%d", idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND t.created_at < $%d", idx)
		args = append(args, *f.To)
		idx++
	}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*)`+txFrom+where, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count transactions", ErrInternal)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	query := `SELECT ` + txColumns + txFrom + where +
		fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	txs := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &txs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return txs, total, nil
}

// SearchTransactions applies admin filters across all wallets.
func (r *Repository) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `SELECT ` + txColumns + txFrom + ` WHERE 1=1`
	args := make([]interface{}, 0, 9)
	idx := 1

	if filters.UserID != nil {
		base += fmt.Sprintf(" AND w.user_id = $%d", idx)
		args = append(args, *filters.UserID)
		idx++
	}
	if filters.Type != nil && *filters.Type != "" {
		base += fmt.Sprintf(" AND t.transaction_type = $%d", idx)
		args = append(args, *filters.Type)
		idx++
	}
	if filters.Status != nil && *filters.Status != "" {
		base += fmt.Sprintf(" AND t.status = $%d", idx)
		args = append(args, *filters.Status)
		idx++
	}
	if filters.ReferenceID != nil && *filters.ReferenceID != "" {
		base += fmt.Sprintf(" AND t.reference_id = $%d", idx)
		args = append(args, *filters.ReferenceID)
		idx++
	}
	if filters.ReferenceType != nil && *filters.ReferenceType != "" {
		base += fmt.Sprintf(" AND t.reference_type = $%d", idx)
		args = append(args, *filters.ReferenceType)
		idx++
	}
	if filters.DateFrom != nil {
		base += fmt.Sprintf(" AND t.created_at >= $%d", idx)
		args = append(args, *filters.DateFrom)
		idx++
	}
	if filters.DateTo != nil {
		base += fmt.Sprintf(" AND t.created_at <= $%d", idx)
		args = append(args, *filters.DateTo)
		idx++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	base = strings.TrimSpace(base) + fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filters.Offset)

	txs := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &txs, base, args...); err != nil {
		return nil, fmt.Errorf("%w: search transactions", ErrInternal)
	}
	return txs, nil
}

// TransactionsInRange returns a user's rows in [from, to) oldest first, capped at max.
func (r *Repository) TransactionsInRange(ctx context.Context, userID uuid.UUID, from, to time.Time, max int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	txs := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &txs, `SELECT `+txColumns+txFrom+`
		WHERE w.user_id = $1 AND t.created_at >= $2 AND t.created_at < $3
		ORDER BY t.created_at, t.id
		LIMIT $4`, userID, from, to, max)
	if err != nil {
		return nil, fmt.Errorf("%w: statement transactions", ErrInternal)
	}
	return txs, nil
}

// Earning rules

// GetRuleByName returns the rule or nil when none exists
func (r *Repository) GetRuleByName(ctx context.Context, name string) (*EarningRule, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rule EarningRule
	err := r.db.GetContext(ctx2, &rule, `SELECT `+ruleColumns+` FROM delta_earning_rules WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get rule", ErrInternal)
	}
	return &rule, nil
}

func (r *Repository) ListRules(ctx context.Context, activeOnly bool) ([]EarningRule, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + ruleColumns + ` FROM delta_earning_rules`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rules := make([]EarningRule, 0)
	if err := r.db.SelectContext(ctx2, &rules, query); err != nil {
		return nil, fmt.Errorf("%w: list rules", ErrInternal)
	}
	return rules, nil
}

// UpsertRule inserts or replaces a rule by name.
func (r *Repository) UpsertRule(ctx context.Context, rule *EarningRule) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if rule.Conditions == nil {
		rule.Conditions = JSONMap{}
	}
	err := r.db.GetContext(ctx2, rule, `
		INSERT INTO delta_earning_rules (name, description, amount, is_active, conditions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description,
		    amount = EXCLUDED.amount,
		    is_active = EXCLUDED.is_active,
		    conditions = EXCLUDED.conditions,
		    updated_at = NOW()
		RETURNING `+ruleColumns, rule.Name, rule.Description, rule.Amount, rule.IsActive, rule.Conditions)
	if err != nil {
		return fmt.Errorf("%w: upsert rule", ErrInternal)
	}
	return nil
}

// Products

// GetProduct returns the product or ErrProductNotFound
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Product
	err := r.db.GetContext(ctx2, &p, `SELECT `+productColumns+` FROM delta_products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get product", ErrInternal)
	}
	return &p, nil
}

func (r *Repository) lockProduct(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Product, error) {
	var p Product
	err := tx.GetContext(ctx, &p, `SELECT `+productColumns+` FROM delta_products WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock product", ErrInternal)
	}
	return &p, nil
}

// ListProducts returns products by price, optionally only available ones of one type.
func (r *Repository) ListProducts(ctx context.Context, productType ProductType, availableOnly bool) ([]Product, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM delta_products WHERE 1=1`
	args := make([]interface{}, 0, 1)
	if availableOnly {
		query += ` AND is_available`
	}
	if productType != "" {
		args = append(args, productType)
		query += fmt.Sprintf(" AND product_type = $%d", len(args))
	}
	query += ` ORDER BY price, name`

	products := make([]Product, 0)
	if err := r.db.SelectContext(ctx2, &products, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list products", ErrInternal)
	}
	return products, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *Product) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Metadata == nil {
		p.Metadata = JSONMap{}
	}
	err := r.db.QueryRowxContext(ctx2, `
		INSERT INTO delta_products (id, name, description, product_type, price, is_available,
			is_limited, quantity_available, icon, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Type, p.Price, p.IsAvailable, p.IsLimited,
		p.QuantityAvailable, p.Icon, p.Metadata).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create product", ErrInternal)
	}
	return nil
}

// UpdateProduct writes every mutable column of p.
func (r *Repository) UpdateProduct(ctx context.Context, p *Product) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowxContext(ctx2, `
		UPDATE delta_products
		SET name = $2, description = $3, product_type = $4, price = $5, is_available = $6,
		    is_limited = $7, quantity_available = $8, icon = $9, metadata = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, p.Description, p.Type, p.Price, p.IsAvailable, p.IsLimited,
		p.QuantityAvailable, p.Icon, p.Metadata).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: update product", ErrInternal)
	}
	return nil
}

// takeStock decrements limited stock and closes the product at zero.
func (r *Repository) takeStock(ctx context.Context, tx *sqlx.Tx, p *Product, quantity int) error {
	err := tx.QueryRowxContext(ctx, `
		UPDATE delta_products
		SET quantity_available = quantity_available - $2,
		    is_available = (quantity_available - $2) > 0,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING quantity_available, is_available
	`, p.ID, quantity).Scan(&p.QuantityAvailable, &p.IsAvailable)
	if err != nil {
		return fmt.Errorf("%w: decrement stock", ErrInternal)
	}
	return nil
}

// Purchases

func (r *Repository) insertPurchase(ctx context.Context, tx *sqlx.Tx, p *Purchase) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO delta_purchases (id, user_id, product_id, transaction_id, quantity, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING is_active, purchased_at
	`, p.ID, p.UserID, p.ProductID, p.TransactionID, p.Quantity, p.TotalPrice).Scan(&p.IsActive, &p.PurchasedAt)
	if err != nil {
		return fmt.Errorf("%w: insert purchase", ErrInternal)
	}
	return nil
}

// ListPurchases returns a page of purchases with their product and transaction attached.
func (r *Repository) ListPurchases(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Purchase, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM delta_purchases WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("%w: count purchases", ErrInternal)
	}

	purchases := make([]Purchase, 0)
	if err := r.db.SelectContext(ctx2, &purchases, `
		SELECT `+purchaseColumns+` FROM delta_purchases
		WHERE user_id = $1
		ORDER BY purchased_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: list purchases", ErrInternal)
	}
	if len(purchases) == 0 {
		return purchases, total, nil
	}

	productIDs := make([]uuid.UUID, 0, len(purchases))
	txIDs := make([]uuid.UUID, 0, len(purchases))
	for _, p := range purchases {
		productIDs = append(productIDs, p.ProductID)
		txIDs = append(txIDs, p.TransactionID)
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM delta_products WHERE id IN (?)`, productIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build product query", ErrInternal)
	}
	products := make([]Product, 0)
	if err := r.db.SelectContext(ctx2, &products, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("%w: load purchase products", ErrInternal)
	}

	query, args, err = sqlx.In(`SELECT `+txColumns+txFrom+` WHERE t.id IN (?)`, txIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build transaction query", ErrInternal)
	}
	txs := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &txs, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("%w: load purchase transactions", ErrInternal)
	}

	byProduct := make(map[uuid.UUID]*Product, len(products))
	for i := range products {
		byProduct[products[i].ID] = &products[i]
	}
	byTx := make(map[uuid.UUID]*Transaction, len(txs))
	for i := range txs {
		byTx[txs[i].ID] = &txs[i]
	}
	for i := range purchases {
		purchases[i].Product = byProduct[purchases[i].ProductID]
		purchases[i].Transaction = byTx[purchases[i].TransactionID]
	}
	return purchases, total, nil
}

// Leaderboard

func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]LeaderboardRow, 0, limit)
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT w.user_id, u.email, w.total_earned, w.balance
		FROM delta_wallets w
		JOIN users u ON u.id = w.user_id
		WHERE w.is_active
		ORDER BY w.total_earned DESC, w.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard", ErrInternal)
	}
	return rows, nil
}

// sumSigned totals the net balance movement of txs.
func sumSigned(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for i := range txs {
		total = total.Add(txs[i].SignedAmount())
	}
	return total
}
