package delta

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dsatschool/delta-api/internal/pkg/logger"
	"github.com/dsatschool/delta-api/internal/pkg/metrics"
)

// EventType names what happened to a wallet
type EventType string

const (
	EventCredit EventType = "wallet.credit"
	EventDebit  EventType = "wallet.debit"
	EventStatus EventType = "wallet.status"
)

// WalletEvent is pushed to listeners after a change is committed.
type WalletEvent struct {
	Type             EventType            `json:"type"`
	UserID           uuid.UUID            `json:"user_id"`
	Balance          decimal.Decimal      `json:"balance"`
	FormattedBalance string               `json:"formatted_balance"`
	IsFrozen         bool                 `json:"is_frozen"`
	IsActive         bool                 `json:"is_active"`
	Transaction      *TransactionResponse `json:"transaction,omitempty"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

// Publisher delivers wallet events. Implementations must not block for long.
type Publisher interface {
	Publish(ctx context.Context, event WalletEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, WalletEvent) error { return nil }

// AnnounceCommitted records and publishes rows written through AddTx or DeductTx
// once the caller's transaction has committed.
func (s *Service) AnnounceCommitted(ctx context.Context, txs ...*Transaction) {
	s.committed(ctx, "external", txs...)
}

func (s *Service) committed(ctx context.Context, op string, txs ...*Transaction) {
	for _, t := range txs {
		if t == nil {
			continue
		}
		metrics.LedgerOperations.WithLabelValues(op, string(t.Type)).Inc()
		metrics.LedgerAmount.Observe(t.Amount.InexactFloat64())

		logger.LogInfo(ctx, "ledger mutation committed",
			"op", op,
			"user_id", t.UserID.String(),
			"tx_id", t.ID.String(),
			"type", string(t.Type),
			"amount", t.Amount.StringFixed(2),
			"balance_after", t.BalanceAfter.StringFixed(2),
		)

		kind := EventDebit
		if t.IsCredit() {
			kind = EventCredit
		}
		resp := NewTransactionResponse(t, nil)
		s.publish(ctx, WalletEvent{
			Type:             kind,
			UserID:           t.UserID,
			Balance:          t.BalanceAfter,
			FormattedBalance: Format(t.BalanceAfter),
			IsActive:         true,
			Transaction:      &resp,
			OccurredAt:       t.CreatedAt,
		})
	}
}

func (s *Service) publishStatus(ctx context.Context, w *Wallet) {
	s.publish(ctx, WalletEvent{
		Type:             EventStatus,
		UserID:           w.UserID,
		Balance:          w.Balance,
		FormattedBalance: Format(w.Balance),
		IsFrozen:         w.IsFrozen,
		IsActive:         w.IsActive,
		OccurredAt:       w.UpdatedAt,
	})
}

func (s *Service) publish(ctx context.Context, event WalletEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		logger.LogError(ctx, err, "failed to publish wallet event",
			"user_id", event.UserID.String(),
			"event", string(event.Type),
		)
	}
}
