package delta

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dsatschool/delta-api/internal/domain/user"
	"github.com/dsatschool/delta-api/internal/pkg/storage"
)

const (
	DefaultPageSize  = 20
	MaxPageSize      = 100
	RecentLimit      = 10
	DefaultBoardSize = 10
	MaxBoardSize     = 100
)

// UserDirectory resolves account details for the ledger
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	EmailsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service implements the ledger operations on top of Repository
type Service struct {
	repo   *Repository
	users  UserDirectory
	events Publisher

	cache    *redis.Client
	cacheTTL time.Duration

	store   storage.ObjectStore
	linkTTL time.Duration
}

// NewService creates the ledger service. Events, the leaderboard cache and
// statement export are disabled until configured.
func NewService(repo *Repository, users UserDirectory) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		events: noopPublisher{},
	}
}

// WithPublisher sets where committed wallet events go.
func (s *Service) WithPublisher(p Publisher) *Service {
	if p != nil {
		s.events = p
	}
	return s
}

// WithLeaderboardCache enables Redis caching of leaderboard rows. A nil client keeps it off.
func (s *Service) WithLeaderboardCache(client *redis.Client, ttl time.Duration) *Service {
	s.cache = client
	s.cacheTTL = ttl
	return s
}

// WithStatements enables statement export into store with links valid for ttl.
func (s *Service) WithStatements(store storage.ObjectStore, ttl time.Duration) *Service {
	s.store = store
	s.linkTTL = ttl
	return s
}

// Users exposes the directory used for email lookups.
func (s *Service) Users() UserDirectory {
	return s.users
}

// Repository exposes the underlying store for callers composing their own transactions.
func (s *Service) Repository() *Repository {
	return s.repo
}

// Page is a 1-based page request
type Page struct {
	Number int
	Size   int
}

// Normalize applies defaults and the page size cap.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// WalletSummary is the wallet with its most recent activity
type WalletSummary struct {
	Wallet            *Wallet
	Recent            []Transaction
	TotalTransactions int
}

// GetOrCreateWallet returns the user's wallet, creating an empty one on first access.
func (s *Service) GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.EnsureWallet(ctx, userID)
}

func (s *Service) GetWalletSummary(ctx context.Context, userID uuid.UUID) (*WalletSummary, error) {
	w, err := s.repo.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, total, err := s.repo.ListTransactions(ctx, userID, TransactionFilter{Limit: RecentLimit})
	if err != nil {
		return nil, err
	}
	return &WalletSummary{Wallet: w, Recent: recent, TotalTransactions: total}, nil
}

// ListTransactions returns a page of the user's history with the filtered total.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, page Page, f TransactionFilter) ([]Transaction, int, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, ErrInvalidType
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, ErrInvalidDateRange
	}
	page = page.Normalize()
	f.Limit = page.Size
	f.Offset = page.offset()
	return s.repo.ListTransactions(ctx, userID, f)
}

// ListProducts returns available products, optionally of one type.
func (s *Service) ListProducts(ctx context.Context, productType ProductType) ([]Product, error) {
	if productType != "" && !productType.Valid() {
		return nil, ErrInvalidProductType
	}
	return s.repo.ListProducts(ctx, productType, true)
}

func (s *Service) ListPurchases(ctx context.Context, userID uuid.UUID, page Page) ([]Purchase, int, error) {
	page = page.Normalize()
	return s.repo.ListPurchases(ctx, userID, page.Size, page.offset())
}

// ListRules returns the active earning rules.
func (s *Service) ListRules(ctx context.Context) ([]EarningRule, error) {
	return s.repo.ListRules(ctx, true)
}

// Emails resolves the owners and counterparties of txs for display.
func (s *Service) Emails(ctx context.Context, txs ...Transaction) (map[uuid.UUID]string, error) {
	seen := make(map[uuid.UUID]struct{}, len(txs))
	ids := make([]uuid.UUID, 0, len(txs))
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for i := range txs {
		add(txs[i].UserID)
		if txs[i].RelatedUserID != nil {
			add(*txs[i].RelatedUserID)
		}
	}
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	return s.users.EmailsByIDs(ctx, ids)
}
