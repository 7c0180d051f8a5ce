package delta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dsatschool/delta-api/internal/pkg/logger"
	"github.com/dsatschool/delta-api/internal/pkg/metrics"
)

const mutationTimeout = 10 * time.Second

const defaultTransferDescription = "Delta transfer"

// MaxAmount is the largest value a NUMERIC(20,2) money column holds.
var MaxAmount = decimal.RequireFromString("999999999999999999.99")

// Meta carries the optional fields of a ledger row.
type Meta struct {
	Description    string
	ReferenceID    string
	ReferenceType  string
	RelatedUserID  *uuid.UUID
	CreatedByID    *uuid.UUID
	IdempotencyKey string
	Metadata       JSONMap

	id uuid.UUID
}

func (m Meta) row(w *Wallet, txType TransactionType, amount, before, after decimal.Decimal) *Transaction {
	return &Transaction{
		ID:             m.id,
		WalletID:       w.ID,
		UserID:         w.UserID,
		Type:           txType,
		Amount:         amount,
		BalanceBefore:  before,
		BalanceAfter:   after,
		Status:         StatusCompleted,
		RelatedUserID:  m.RelatedUserID,
		ReferenceID:    optional(m.ReferenceID),
		ReferenceType:  optional(m.ReferenceType),
		IdempotencyKey: optional(m.IdempotencyKey),
		Description:    m.Description,
		Metadata:       m.Metadata,
		CreatedByID:    m.CreatedByID,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ValidateAmount accepts positive amounts with at most two fraction digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrAmountPrecision
	}
	if amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// withinCap rejects running totals that would overflow a money column.
func withinCap(values ...decimal.Decimal) error {
	for _, v := range values {
		if v.GreaterThan(MaxAmount) {
			return ErrAmountTooLarge
		}
	}
	return nil
}

// Add credits a wallet and records the audit row.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, error) {
	var out *Transaction
	err := s.mutate(ctx, "add", func(ctx context.Context, tx *sqlx.Tx) ([]*Transaction, bool, error) {
		t, replayed, err := s.addTx(ctx, tx, userID, amount, txType, meta)
		out = t
		return []*Transaction{t}, replayed, err
	}, "user_id", userID.String())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deduct debits a wallet, refusing to take the balance below zero.
func (s *Service) Deduct(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, error) {
	var out *Transaction
	err := s.mutate(ctx, "deduct", func(ctx context.Context, tx *sqlx.Tx) ([]*Transaction, bool, error) {
		t, replayed, err := s.deductTx(ctx, tx, userID, amount, txType, meta)
		out = t
		return []*Transaction{t}, replayed, err
	}, "user_id", userID.String())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddTx credits inside a caller-owned transaction. The caller commits and then
// calls AnnounceCommitted.
func (s *Service) AddTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, error) {
	t, _, err := s.addTx(ctx, tx, userID, amount, txType, meta)
	return t, err
}

// DeductTx debits inside a caller-owned transaction. The caller commits and then
// calls AnnounceCommitted.
func (s *Service) DeductTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, error) {
	t, _, err := s.deductTx(ctx, tx, userID, amount, txType, meta)
	return t, err
}

func (s *Service) addTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, bool, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, false, err
	}
	if !txType.Valid() {
		return nil, false, ErrInvalidType
	}

	w, err := s.repo.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}

	prior, err := s.replay(ctx, tx, w, amount, txType, true, meta.IdempotencyKey)
	if err != nil || prior != nil {
		return prior, prior != nil, err
	}

	t, err := s.credit(ctx, tx, w, amount, txType, meta)
	return t, false, err
}

func (s *Service) deductTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, bool, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, false, err
	}
	if !txType.Valid() {
		return nil, false, ErrInvalidType
	}

	w, err := s.repo.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}

	prior, err := s.replay(ctx, tx, w, amount, txType, false, meta.IdempotencyKey)
	if err != nil || prior != nil {
		return prior, prior != nil, err
	}

	t, err := s.debit(ctx, tx, w, amount, txType, meta)
	return t, false, err
}

// replay returns the row previously written under key, or nil when the key is unused.
// A key reused for a different operation is a conflict.
func (s *Service) replay(ctx context.Context, tx *sqlx.Tx, w *Wallet, amount decimal.Decimal, txType TransactionType, isCredit bool, key string) (*Transaction, error) {
	if key == "" {
		return nil, nil
	}
	prior, err := s.repo.findByIdempotencyKey(ctx, tx, w.ID, key)
	if err != nil || prior == nil {
		return nil, err
	}
	if !prior.Amount.Equal(amount) || prior.Type != txType || prior.IsCredit() != isCredit {
		return nil, ErrIdempotencyConflict
	}
	logger.LogDebug(ctx, "idempotent ledger replay", "tx_id", prior.ID.String(), "key", key)
	return prior, nil
}

func checkMutable(w *Wallet) error {
	if !w.IsActive {
		return ErrWalletInactive
	}
	if w.IsFrozen {
		return ErrWalletFrozen
	}
	return nil
}

// credit applies an increase to a locked wallet.
func (s *Service) credit(ctx context.Context, tx *sqlx.Tx, w *Wallet, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, error) {
	if err := checkMutable(w); err != nil {
		return nil, err
	}

	before := w.Balance
	if err := withinCap(before.Add(amount), w.TotalEarned.Add(amount)); err != nil {
		return nil, err
	}
	w.Balance = before.Add(amount)
	w.TotalEarned = w.TotalEarned.Add(amount)
	if err := s.repo.saveBalances(ctx, tx, w); err != nil {
		return nil, err
	}

	t := meta.row(w, txType, amount, before, w.Balance)
	if err := s.repo.insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// debit applies a decrease to a locked wallet.
func (s *Service) debit(ctx context.Context, tx *sqlx.Tx, w *Wallet, amount decimal.Decimal, txType TransactionType, meta Meta) (*Transaction, error) {
	if err := checkMutable(w); err != nil {
		return nil, err
	}
	if w.Balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, Format(w.Balance), Format(amount))
	}

	if err := withinCap(w.TotalSpent.Add(amount)); err != nil {
		return nil, err
	}

	before := w.Balance
	w.Balance = before.Sub(amount)
	w.TotalSpent = w.TotalSpent.Add(amount)
	if err := s.repo.saveBalances(ctx, tx, w); err != nil {
		return nil, err
	}

	t := meta.row(w, txType, amount, before, w.Balance)
	if err := s.repo.insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Transfer moves amount between two users as a debit/credit pair in one transaction.
func (s *Service) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, description string) (*Transaction, *Transaction, error) {
	fields := []interface{}{"user_id", fromID.String(), "to_user_id", toID.String()}
	if fromID == toID {
		return nil, nil, s.rejected(ctx, "transfer", ErrSelfTransfer, fields...)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, nil, s.rejected(ctx, "transfer", err, fields...)
	}

	sender, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load sender", ErrInternal)
	}
	recipient, err := s.users.GetByID(ctx, toID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load recipient", ErrInternal)
	}
	if sender == nil || recipient == nil {
		return nil, nil, ErrUserNotFound
	}

	if description == "" {
		description = defaultTransferDescription
	}
	sentID, receivedID := uuid.New(), uuid.New()

	var sent, received *Transaction
	err = s.mutate(ctx, "transfer", func(ctx context.Context, tx *sqlx.Tx) ([]*Transaction, bool, error) {
		wallets, err := s.lockPair(ctx, tx, fromID, toID)
		if err != nil {
			return nil, false, err
		}

		sent, err = s.debit(ctx, tx, wallets[fromID], amount, TxTransfer, Meta{
			Description:   fmt.Sprintf("%s (sent to %s)", description, recipient.Email),
			ReferenceID:   receivedID.String(),
			ReferenceType: RefTransfer,
			RelatedUserID: &toID,
			Metadata:      JSONMap{"to_user_id": toID.String()},
			id:            sentID,
		})
		if err != nil {
			return nil, false, err
		}

		received, err = s.credit(ctx, tx, wallets[toID], amount, TxTransfer, Meta{
			Description:   fmt.Sprintf("%s (received from %s)", description, sender.Email),
			ReferenceID:   sentID.String(),
			ReferenceType: RefTransfer,
			RelatedUserID: &fromID,
			Metadata:      JSONMap{"from_user_id": fromID.String()},
			id:            receivedID,
		})
		if err != nil {
			return nil, false, err
		}
		return []*Transaction{sent, received}, false, nil
	}, fields...)
	if err != nil {
		return nil, nil, err
	}
	return sent, received, nil
}

// lockPair locks both wallets in ascending user id order.
func (s *Service) lockPair(ctx context.Context, tx *sqlx.Tx, a, b uuid.UUID) (map[uuid.UUID]*Wallet, error) {
	order := []uuid.UUID{a, b}
	if bytes.Compare(a[:], b[:]) > 0 {
		order[0], order[1] = b, a
	}

	wallets := make(map[uuid.UUID]*Wallet, 2)
	for _, id := range order {
		w, err := s.repo.lockWallet(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		wallets[id] = w
	}
	return wallets, nil
}

// Reverse writes the compensating row for a completed transaction and flags the original.
// The direction is taken from the original's own balance movement.
func (s *Service) Reverse(ctx context.Context, txID uuid.UUID, reason string, actorID *uuid.UUID) (*Transaction, error) {
	var out *Transaction
	err := s.mutate(ctx, "reverse", func(ctx context.Context, tx *sqlx.Tx) ([]*Transaction, bool, error) {
		orig, err := s.repo.lockTransaction(ctx, tx, txID)
		if err != nil {
			return nil, false, err
		}
		if err := reversible(orig); err != nil {
			return nil, false, err
		}

		w, err := s.repo.lockWalletByID(ctx, tx, orig.WalletID)
		if err != nil {
			return nil, false, err
		}

		meta := Meta{
			Description:   fmt.Sprintf("Reversal: %s. Reason: %s", orig.Description, reason),
			ReferenceID:   orig.ID.String(),
			ReferenceType: RefTransactionReversal,
			CreatedByID:   actorID,
			Metadata:      JSONMap{"original_tx_id": orig.ID.String(), "reason": reason},
		}
		if orig.IsCredit() {
			out, err = s.debit(ctx, tx, w, orig.Amount, TxReversal, meta)
		} else {
			out, err = s.credit(ctx, tx, w, orig.Amount, TxReversal, meta)
		}
		if err != nil {
			return nil, false, err
		}

		if err := s.repo.markReversed(ctx, tx, orig.ID, out.ID); err != nil {
			return nil, false, err
		}
		return []*Transaction{out}, false, nil
	}, "tx_id", txID.String())
	if err != nil {
		return nil, err
	}
	return out, nil
}

func reversible(t *Transaction) error {
	if t.Type == TxReversal {
		return ErrReversalOfReversal
	}
	if t.IsReversed {
		return ErrAlreadyReversed
	}
	if t.Status != StatusCompleted {
		return ErrNotCompleted
	}
	return nil
}

type mutation func(ctx context.Context, tx *sqlx.Tx) (txs []*Transaction, replayed bool, err error)

// mutate runs fn in one database transaction and, after commit, records and
// publishes the rows it wrote.
func (s *Service) mutate(ctx context.Context, op string, fn mutation, fields ...interface{}) error {
	ctx2, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	tx, err := s.repo.beginTx(ctx2)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txs, replayed, err := fn(ctx2, tx)
	if err != nil {
		return s.rejected(ctx, op, err, fields...)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	if !replayed {
		s.committed(ctx, op, txs...)
	}
	return nil
}

// rejected counts and logs business-rule rejections and passes err through.
func (s *Service) rejected(ctx context.Context, op string, err error, fields ...interface{}) error {
	reason := reasonOf(err)
	if reason == "" && errors.Is(err, ErrIdempotencyConflict) {
		reason = "idempotency_conflict"
	}
	if reason == "" {
		return err
	}

	metrics.LedgerRejections.WithLabelValues(op, reason).Inc()
	fields = append(fields, "op", op, "reason", reason, "error", err.Error())
	logger.LogWarn(ctx, "ledger mutation rejected", fields...)
	return err
}
