package delta

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Purchase buys quantity units of a product, debiting the wallet and taking limited stock
// in the same transaction.
func (s *Service) Purchase(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Purchase, error) {
	fields := []interface{}{"user_id", userID.String(), "product_id", productID.String()}
	if quantity < 1 {
		return nil, s.rejected(ctx, "purchase", ErrInvalidQuantity, fields...)
	}

	var out *Purchase
	err := s.mutate(ctx, "purchase", func(ctx context.Context, tx *sqlx.Tx) ([]*Transaction, bool, error) {
		product, err := s.repo.lockProduct(ctx, tx, productID)
		if err != nil {
			return nil, false, err
		}
		if !product.IsAvailable {
			return nil, false, ErrProductUnavailable
		}
		if product.IsLimited && (product.QuantityAvailable == nil || *product.QuantityAvailable < quantity) {
			return nil, false, ErrInsufficientStock
		}

		total := product.Price.Mul(decimal.NewFromInt(int64(quantity)))
		if err := withinCap(total); err != nil {
			return nil, false, err
		}

		w, err := s.repo.lockWallet(ctx, tx, userID)
		if err != nil {
			return nil, false, err
		}
		t, err := s.debit(ctx, tx, w, total, TxSpend, Meta{
			Description:   fmt.Sprintf("Purchased %s x%d", product.Name, quantity),
			ReferenceID:   product.ID.String(),
			ReferenceType: RefProductPurchase,
			Metadata: JSONMap{
				"product_id":   product.ID.String(),
				"product_name": product.Name,
				"quantity":     quantity,
				"unit_price":   product.Price.StringFixed(2),
			},
		})
		if err != nil {
			return nil, false, err
		}

		p := &Purchase{
			UserID:        userID,
			ProductID:     product.ID,
			TransactionID: t.ID,
			Quantity:      quantity,
			TotalPrice:    total,
		}
		if err := s.repo.insertPurchase(ctx, tx, p); err != nil {
			return nil, false, err
		}

		if product.IsLimited {
			if err := s.repo.takeStock(ctx, tx, product, quantity); err != nil {
				return nil, false, err
			}
		}

		p.Product = product
		p.Transaction = t
		out = p
		return []*Transaction{t}, false, nil
	}, fields...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
