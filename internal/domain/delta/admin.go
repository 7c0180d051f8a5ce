package delta

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dsatschool/delta-api/internal/pkg/logger"
)

const defaultAdjustDescription = "Admin adjustment"

// Adjustment directions
const (
	DirectionAdd    = "add"
	DirectionDeduct = "deduct"
)

// SetFrozen freezes or unfreezes a wallet.
func (s *Service) SetFrozen(ctx context.Context, userID uuid.UUID, frozen bool) (*Wallet, error) {
	w, err := s.repo.SetWalletFlags(ctx, userID, &frozen, nil)
	if err != nil {
		return nil, err
	}
	logger.LogInfo(ctx, "wallet frozen flag changed", "user_id", userID.String(), "is_frozen", frozen)
	s.publishStatus(ctx, w)
	return w, nil
}

// SetActive activates or deactivates a wallet.
func (s *Service) SetActive(ctx context.Context, userID uuid.UUID, active bool) (*Wallet, error) {
	w, err := s.repo.SetWalletFlags(ctx, userID, nil, &active)
	if err != nil {
		return nil, err
	}
	logger.LogInfo(ctx, "wallet active flag changed", "user_id", userID.String(), "is_active", active)
	s.publishStatus(ctx, w)
	return w, nil
}

// AdminAdjust credits or debits a wallet on behalf of an admin.
func (s *Service) AdminAdjust(ctx context.Context, adminID, userID uuid.UUID, direction string, amount decimal.Decimal, description string) (*Transaction, error) {
	if strings.TrimSpace(description) == "" {
		description = defaultAdjustDescription
	}
	meta := Meta{
		Description: description,
		CreatedByID: &adminID,
		Metadata:    JSONMap{"admin_id": adminID.String()},
	}

	switch direction {
	case DirectionAdd:
		return s.Add(ctx, userID, amount, TxAdminAdd, meta)
	case DirectionDeduct:
		return s.Deduct(ctx, userID, amount, TxAdminDeduct, meta)
	default:
		return nil, s.rejected(ctx, "adjust", ErrInvalidDirection, "user_id", userID.String())
	}
}

// SearchTransactions filters transactions across all wallets.
func (s *Service) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateFrom.After(*filters.DateTo) {
		return nil, ErrInvalidDateRange
	}
	return s.repo.SearchTransactions(ctx, filters)
}

// ListAllRules returns active and inactive rules.
func (s *Service) ListAllRules(ctx context.Context) ([]EarningRule, error) {
	return s.repo.ListRules(ctx, false)
}

// UpsertRule creates or replaces a rule by name.
func (s *Service) UpsertRule(ctx context.Context, rule *EarningRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Name == "" || rule.Amount.IsNegative() || !rule.Amount.Equal(rule.Amount.Round(2)) {
		return ErrInvalidRule
	}
	if rule.Amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	if err := s.repo.UpsertRule(ctx, rule); err != nil {
		return err
	}
	logger.LogInfo(ctx, "earning rule saved", "rule", rule.Name, "amount", rule.Amount.StringFixed(2), "active", rule.IsActive)
	return nil
}

// SeedRules upserts rules, or the default set when rules is empty, and returns how many were written.
func (s *Service) SeedRules(ctx context.Context, rules []EarningRule) (int, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for i := range rules {
		if err := s.UpsertRule(ctx, &rules[i]); err != nil {
			return i, err
		}
	}
	return len(rules), nil
}

func validateProduct(p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidProduct
	}
	if !p.Type.Valid() {
		return ErrInvalidProductType
	}
	if err := ValidateAmount(p.Price); err != nil {
		return err
	}
	if p.IsLimited && (p.QuantityAvailable == nil || *p.QuantityAvailable < 0) {
		return ErrInvalidProduct
	}
	if !p.IsLimited {
		p.QuantityAvailable = nil
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if p.IsLimited && *p.QuantityAvailable == 0 {
		p.IsAvailable = false
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	logger.LogInfo(ctx, "product created", "product_id", p.ID.String(), "name", p.Name)
	return nil
}

// ProductPatch holds the fields an admin may change; nil leaves a field as is.
type ProductPatch struct {
	Name              *string
	Description       *string
	Type              *ProductType
	Price             *decimal.Decimal
	IsAvailable       *bool
	IsLimited         *bool
	QuantityAvailable *int
	Icon              *string
	Metadata          JSONMap
}

func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.IsAvailable != nil {
		p.IsAvailable = *patch.IsAvailable
	}
	if patch.IsLimited != nil {
		p.IsLimited = *patch.IsLimited
	}
	if patch.QuantityAvailable != nil {
		q := *patch.QuantityAvailable
		p.QuantityAvailable = &q
	}
	if patch.Icon != nil {
		p.Icon = *patch.Icon
	}
	if patch.Metadata != nil {
		p.Metadata = patch.Metadata
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	logger.LogInfo(ctx, "product updated", "product_id", p.ID.String())
	return p, nil
}
