package delta

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsatschool/delta-api/internal/domain/user"
	"github.com/dsatschool/delta-api/internal/pkg/database/dbtest"
	"github.com/dsatschool/delta-api/internal/pkg/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []WalletEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev WalletEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func setupService(t *testing.T) (*Service, *sqlx.DB, *recordingPublisher) {
	db := dbtest.Open(t)
	events := &recordingPublisher{}
	svc := NewService(NewRepository(db), user.NewRepository(db)).WithPublisher(events)
	return svc, db, events
}

func fund(t *testing.T, svc *Service, userID uuid.UUID, amount string) {
	t.Helper()
	_, err := svc.Add(context.Background(), userID, d(amount), TxBonus, Meta{Description: "test funding"})
	require.NoError(t, err)
}

func balanceOf(t *testing.T, svc *Service, userID uuid.UUID) string {
	t.Helper()
	w, err := svc.GetOrCreateWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance.StringFixed(2)
}

func TestDeductExample(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "100")

	tx, err := svc.Deduct(ctx, userID, d("60"), TxSpend, Meta{Description: "hint"})
	require.NoError(t, err)
	assert.Equal(t, "100.00", tx.BalanceBefore.StringFixed(2))
	assert.Equal(t, "40.00", tx.BalanceAfter.StringFixed(2))
	assert.Equal(t, StatusCompleted, tx.Status)

	_, err = svc.Deduct(ctx, userID, d("60"), TxSpend, Meta{Description: "hint"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "have 40.00 Δ, need 60.00 Δ")
	assert.Equal(t, "40.00", balanceOf(t, svc, userID))

	w, err := svc.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", w.TotalEarned.StringFixed(2))
	assert.Equal(t, "60.00", w.TotalSpent.StringFixed(2))
}

func TestDeductThenAddRestoresBalance(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "50")

	_, err := svc.Deduct(ctx, userID, d("12.34"), TxSpend, Meta{})
	require.NoError(t, err)
	_, err = svc.Add(ctx, userID, d("12.34"), TxRefund, Meta{})
	require.NoError(t, err)

	assert.Equal(t, "50.00", balanceOf(t, svc, userID))

	txs, total, err := svc.ListTransactions(ctx, userID, Page{}, TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, txs, 3)
	assert.Equal(t, TxRefund, txs[0].Type)
}

func TestAddRejectsBadAmounts(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")

	_, err := svc.Add(ctx, userID, d("0"), TxEarn, Meta{})
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	_, err = svc.Add(ctx, userID, d("1.999"), TxEarn, Meta{})
	assert.ErrorIs(t, err, ErrAmountPrecision)
	_, err = svc.Add(ctx, userID, d("1"), TransactionType("gift"), Meta{})
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = svc.Add(ctx, uuid.New(), d("1"), TxEarn, Meta{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIdempotentAdd(t *testing.T) {
	svc, db, events := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")

	meta := Meta{Description: "award", IdempotencyKey: "award:test:" + uuid.NewString()}
	first, err := svc.Add(ctx, userID, d("20"), TxEarn, meta)
	require.NoError(t, err)
	second, err := svc.Add(ctx, userID, d("20"), TxEarn, meta)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "20.00", balanceOf(t, svc, userID))
	assert.Equal(t, 1, events.count())

	_, err = svc.Add(ctx, userID, d("25"), TxEarn, meta)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestFrozenAndInactiveWalletsRejectMutations(t *testing.T) {
	svc, db, events := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "10")

	_, err := svc.SetFrozen(ctx, userID, true)
	require.NoError(t, err)
	_, err = svc.Add(ctx, userID, d("1"), TxEarn, Meta{})
	assert.ErrorIs(t, err, ErrWalletFrozen)
	_, err = svc.Deduct(ctx, userID, d("1"), TxSpend, Meta{})
	assert.ErrorIs(t, err, ErrWalletFrozen)

	_, err = svc.SetFrozen(ctx, userID, false)
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, userID, false)
	require.NoError(t, err)
	_, err = svc.Add(ctx, userID, d("1"), TxEarn, Meta{})
	assert.ErrorIs(t, err, ErrWalletInactive)

	assert.Equal(t, "10.00", balanceOf(t, svc, userID))

	var statusEvents int
	for _, ev := range events.events {
		if ev.Type == EventStatus {
			statusEvents++
		}
	}
	assert.Equal(t, 3, statusEvents)
}

func TestTransfer(t *testing.T) {
	svc, db, events := setupService(t)
	ctx := context.Background()
	alice, aliceEmail := dbtest.CreateUser(t, db, "student")
	bob, bobEmail := dbtest.CreateUser(t, db, "student")
	fund(t, svc, alice, "30")
	before := events.count()

	sent, received, err := svc.Transfer(ctx, alice, bob, d("12.50"), "")
	require.NoError(t, err)

	assert.Equal(t, TxTransfer, sent.Type)
	assert.Equal(t, TxTransfer, received.Type)
	assert.False(t, sent.IsCredit())
	assert.True(t, received.IsCredit())
	assert.Equal(t, "Delta transfer (sent to "+bobEmail+")", sent.Description)
	assert.Equal(t, "Delta transfer (received from "+aliceEmail+")", received.Description)
	require.NotNil(t, sent.RelatedUserID)
	require.NotNil(t, received.RelatedUserID)
	assert.Equal(t, bob, *sent.RelatedUserID)
	assert.Equal(t, alice, *received.RelatedUserID)
	assert.Equal(t, bob.String(), sent.Metadata["to_user_id"])
	assert.Equal(t, alice.String(), received.Metadata["from_user_id"])
	assert.Equal(t, received.ID.String(), *sent.ReferenceID)

	assert.Equal(t, "17.50", balanceOf(t, svc, alice))
	assert.Equal(t, "12.50", balanceOf(t, svc, bob))
	assert.Equal(t, before+2, events.count())

	_, _, err = svc.Transfer(ctx, alice, alice, d("1"), "")
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, _, err = svc.Transfer(ctx, alice, bob, d("100"), "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "12.50", balanceOf(t, svc, bob))
}

func TestTransferToFrozenRecipientLeavesSenderUntouched(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	alice, _ := dbtest.CreateUser(t, db, "student")
	bob, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, alice, "30")
	_, err := svc.SetFrozen(ctx, bob, true)
	require.NoError(t, err)

	_, _, err = svc.Transfer(ctx, alice, bob, d("5"), "gift")
	assert.ErrorIs(t, err, ErrWalletFrozen)
	assert.Equal(t, "30.00", balanceOf(t, svc, alice))
}

func TestReverse(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	admin, _ := dbtest.CreateUser(t, db, "admin")
	fund(t, svc, userID, "80")

	spend, err := svc.Deduct(ctx, userID, d("30"), TxSpend, Meta{Description: "hint pack"})
	require.NoError(t, err)

	rev, err := svc.Reverse(ctx, spend.ID, "duplicate charge", &admin)
	require.NoError(t, err)
	assert.Equal(t, TxReversal, rev.Type)
	assert.True(t, rev.IsCredit())
	assert.Equal(t, "Reversal: hint pack. Reason: duplicate charge", rev.Description)
	assert.Equal(t, RefTransactionReversal, *rev.ReferenceType)
	assert.Equal(t, spend.ID.String(), *rev.ReferenceID)
	assert.Equal(t, "80.00", balanceOf(t, svc, userID))

	orig, err := svc.Repository().GetTransaction(ctx, spend.ID)
	require.NoError(t, err)
	assert.True(t, orig.IsReversed)
	assert.Equal(t, StatusCompleted, orig.Status)
	require.NotNil(t, orig.ReversedByID)
	assert.Equal(t, rev.ID, *orig.ReversedByID)

	_, err = svc.Reverse(ctx, spend.ID, "again", &admin)
	assert.ErrorIs(t, err, ErrAlreadyReversed)
	_, err = svc.Reverse(ctx, rev.ID, "undo", &admin)
	assert.ErrorIs(t, err, ErrReversalOfReversal)
	_, err = svc.Reverse(ctx, uuid.New(), "missing", &admin)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestReverseCreditCanFailOnBalance(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")

	earn, err := svc.Add(ctx, userID, d("50"), TxEarn, Meta{})
	require.NoError(t, err)
	_, err = svc.Deduct(ctx, userID, d("45"), TxSpend, Meta{})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, earn.ID, "fraud", nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	orig, err := svc.Repository().GetTransaction(ctx, earn.ID)
	require.NoError(t, err)
	assert.False(t, orig.IsReversed)
}

func TestConcurrentDeductsOnlyOneSucceeds(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "40")

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, insufficient int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Deduct(ctx, userID, d("40"), TxSpend, Meta{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientBalance):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, insufficient)
	assert.Equal(t, "0.00", balanceOf(t, svc, userID))
}

func TestBalanceNeverNegative(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	alice, _ := dbtest.CreateUser(t, db, "student")
	bob, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, alice, "10")
	fund(t, svc, bob, "10")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = svc.Transfer(ctx, alice, bob, d("3"), "")
		}()
		go func() {
			defer wg.Done()
			_, _, _ = svc.Transfer(ctx, bob, alice, d("4"), "")
		}()
	}
	wg.Wait()

	a, err := svc.GetOrCreateWallet(ctx, alice)
	require.NoError(t, err)
	b, err := svc.GetOrCreateWallet(ctx, bob)
	require.NoError(t, err)
	assert.False(t, a.Balance.IsNegative())
	assert.False(t, b.Balance.IsNegative())
	assert.Equal(t, "20.00", a.Balance.Add(b.Balance).StringFixed(2))
}

func createProduct(t *testing.T, svc *Service, price string, stock *int) *Product {
	t.Helper()
	p := &Product{
		Name:              "Hint pack " + uuid.NewString()[:8],
		Type:              ProductContent,
		Price:             d(price),
		IsAvailable:       true,
		IsLimited:         stock != nil,
		QuantityAvailable: stock,
	}
	require.NoError(t, svc.CreateProduct(context.Background(), p))
	return p
}

func TestPurchase(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "100")
	stock := 5
	product := createProduct(t, svc, "15.25", &stock)

	purchase, err := svc.Purchase(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "30.50", purchase.TotalPrice.StringFixed(2))
	assert.Equal(t, TxSpend, purchase.Transaction.Type)
	assert.Equal(t, "Purchased "+product.Name+" x2", purchase.Transaction.Description)
	assert.Equal(t, RefProductPurchase, *purchase.Transaction.ReferenceType)
	assert.Equal(t, "69.50", balanceOf(t, svc, userID))

	reloaded, err := svc.Repository().GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.QuantityAvailable)
	assert.Equal(t, 3, *reloaded.QuantityAvailable)
	assert.True(t, reloaded.IsAvailable)

	_, err = svc.Purchase(ctx, userID, product.ID, 4)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	_, err = svc.Purchase(ctx, userID, product.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Purchase(ctx, userID, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	purchases, total, err := svc.ListPurchases(ctx, userID, Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, purchases, 1)
	require.NotNil(t, purchases[0].Product)
	assert.Equal(t, product.Name, purchases[0].Product.Name)
	require.NotNil(t, purchases[0].Transaction)
}

func TestPurchaseInsufficientBalanceKeepsStock(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "5")
	stock := 1
	product := createProduct(t, svc, "10", &stock)

	_, err := svc.Purchase(ctx, userID, product.ID, 1)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	reloaded, err := svc.Repository().GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *reloaded.QuantityAvailable)
}

func TestConcurrentPurchaseOfLastItem(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	stock := 1
	product := createProduct(t, svc, "10", &stock)

	const buyers = 6
	ids := make([]uuid.UUID, buyers)
	for i := range ids {
		ids[i], _ = dbtest.CreateUser(t, db, "student")
		fund(t, svc, ids[i], "50")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, rejected int
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.Purchase(ctx, id, product.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrProductUnavailable), errors.Is(err, ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, buyers-1, rejected)

	reloaded, err := svc.Repository().GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsAvailable)
	assert.Equal(t, 0, *reloaded.QuantityAvailable)
}

func TestAwardForActivity(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")

	name := "test_accuracy_" + uuid.NewString()[:8]
	require.NoError(t, svc.UpsertRule(ctx, &EarningRule{
		Name:        name,
		Description: "Accurate session",
		Amount:      d("30"),
		IsActive:    true,
		Conditions:  JSONMap{"min_accuracy": 80},
	}))

	tx, err := svc.AwardForActivity(ctx, userID, name, AwardContext{Values: map[string]float64{"accuracy": 50}})
	require.NoError(t, err)
	assert.Nil(t, tx)

	ac := AwardContext{
		Values:        map[string]float64{"accuracy": 90},
		ReferenceID:   uuid.NewString(),
		ReferenceType: "practice_session",
	}
	tx, err = svc.AwardForActivity(ctx, userID, name, ac)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, TxEarn, tx.Type)
	assert.Equal(t, "Accurate session", tx.Description)
	assert.Equal(t, name, tx.Metadata["rule"])

	again, err := svc.AwardForActivity(ctx, userID, name, ac)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, again.ID)
	assert.Equal(t, "30.00", balanceOf(t, svc, userID))

	tx, err = svc.AwardForActivity(ctx, userID, "no_such_rule_"+uuid.NewString(), AwardContext{})
	require.NoError(t, err)
	assert.Nil(t, tx)

	require.NoError(t, svc.UpsertRule(ctx, &EarningRule{Name: name, Amount: d("30"), IsActive: false}))
	tx, err = svc.AwardForActivity(ctx, userID, name, AwardContext{Values: map[string]float64{"accuracy": 100}})
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestAdminAdjust(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	admin, _ := dbtest.CreateUser(t, db, "admin")

	tx, err := svc.AdminAdjust(ctx, admin, userID, DirectionAdd, d("9.99"), "")
	require.NoError(t, err)
	assert.Equal(t, TxAdminAdd, tx.Type)
	assert.Equal(t, defaultAdjustDescription, tx.Description)
	require.NotNil(t, tx.CreatedByID)
	assert.Equal(t, admin, *tx.CreatedByID)

	tx, err = svc.AdminAdjust(ctx, admin, userID, DirectionDeduct, d("4.99"), "correction")
	require.NoError(t, err)
	assert.Equal(t, TxAdminDeduct, tx.Type)
	assert.Equal(t, "5.00", balanceOf(t, svc, userID))

	_, err = svc.AdminAdjust(ctx, admin, userID, "double", d("1"), "")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	found, err := svc.SearchTransactions(ctx, SearchFilters{UserID: &userID, Type: strPtr(string(TxAdminDeduct))})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, tx.ID, found[0].ID)
}

func TestListTransactionsFilters(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	for i := 0; i < 3; i++ {
		fund(t, svc, userID, "1")
	}
	_, err := svc.Deduct(ctx, userID, d("2"), TxSpend, Meta{})
	require.NoError(t, err)

	txs, total, err := svc.ListTransactions(ctx, userID, Page{Number: 1, Size: 2}, TransactionFilter{Type: TxBonus})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, txs, 2)

	future := time.Now().Add(time.Hour)
	_, total, err = svc.ListTransactions(ctx, userID, Page{}, TransactionFilter{From: &future})
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, _, err = svc.ListTransactions(ctx, userID, Page{}, TransactionFilter{Type: "gift"})
	assert.ErrorIs(t, err, ErrInvalidType)

	summary, err := svc.GetWalletSummary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalTransactions)
	assert.Len(t, summary.Recent, 4)
}

func TestLeaderboardMarksCurrentUser(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, email := dbtest.CreateUser(t, db, "student")

	var top decimal.Decimal
	require.NoError(t, db.Get(&top, `SELECT COALESCE(MAX(total_earned), 0) FROM delta_wallets`))
	fund(t, svc, userID, top.Add(decimal.NewFromInt(1)).StringFixed(2))

	entries, err := svc.Leaderboard(ctx, 5, userID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.LessOrEqual(t, len(entries), 5)

	var found bool
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		if e.IsCurrentUser {
			found = true
			assert.Equal(t, email, e.UserEmail)
		}
	}
	assert.True(t, found)
}

func TestExportStatement(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "10")

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)

	_, err := svc.ExportStatement(ctx, userID, from, to)
	assert.ErrorIs(t, err, ErrExportDisabled)

	store := storage.NewMemoryStorage("https://files.test")
	svc.WithStatements(store, 15*time.Minute)

	link, err := svc.ExportStatement(ctx, userID, from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, link.Rows)
	assert.True(t, strings.HasPrefix(link.URL, "https://files.test/statements/"+userID.String()))
	assert.True(t, strings.HasSuffix(link.Key, ".xlsx"))

	exists, err := store.Exists(ctx, link.Key)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.ExportStatement(ctx, userID, to, from)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func strPtr(s string) *string { return &s }

func TestOverflowingAmountsAreRejected(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	admin, _ := dbtest.CreateUser(t, db, "admin")

	_, err := svc.AdminAdjust(ctx, admin, userID, DirectionAdd, d("1e20"), "")
	assert.ErrorIs(t, err, ErrAmountTooLarge)
	assert.ErrorIs(t, err, ErrValidation)

	fund(t, svc, userID, MaxAmount.StringFixed(2))
	_, err = svc.Add(ctx, userID, d("0.01"), TxBonus, Meta{})
	assert.ErrorIs(t, err, ErrAmountTooLarge)
	assert.Equal(t, MaxAmount.StringFixed(2), balanceOf(t, svc, userID))

	product := createProduct(t, svc, "999999999999999999.00", nil)
	_, err = svc.Purchase(ctx, userID, product.ID, 2)
	assert.ErrorIs(t, err, ErrAmountTooLarge)
	assert.Equal(t, MaxAmount.StringFixed(2), balanceOf(t, svc, userID))

	err = svc.UpsertRule(ctx, &EarningRule{Name: "overflow_" + uuid.NewString()[:8], Amount: d("1e20"), IsActive: true})
	assert.ErrorIs(t, err, ErrAmountTooLarge)
}

func TestReverseTransferRestoresSender(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	alice, _ := dbtest.CreateUser(t, db, "student")
	bob, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, alice, "40")

	sent, received, err := svc.Transfer(ctx, alice, bob, d("15"), "")
	require.NoError(t, err)

	rev, err := svc.Reverse(ctx, sent.ID, "sent by mistake", nil)
	require.NoError(t, err)
	assert.True(t, rev.IsCredit())
	assert.Equal(t, alice, rev.UserID)
	assert.Equal(t, "40.00", balanceOf(t, svc, alice))
	assert.Equal(t, "15.00", balanceOf(t, svc, bob))

	rev, err = svc.Reverse(ctx, received.ID, "sent by mistake", nil)
	require.NoError(t, err)
	assert.False(t, rev.IsCredit())
	assert.Equal(t, "0.00", balanceOf(t, svc, bob))
}

func TestReverseRefundIsDebit(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	userID, _ := dbtest.CreateUser(t, db, "student")
	fund(t, svc, userID, "10")

	refund, err := svc.Add(ctx, userID, d("25"), TxRefund, Meta{Description: "refund"})
	require.NoError(t, err)
	assert.Equal(t, "35.00", balanceOf(t, svc, userID))

	rev, err := svc.Reverse(ctx, refund.ID, "refund issued twice", nil)
	require.NoError(t, err)
	assert.False(t, rev.IsCredit())
	assert.True(t, rev.Amount.Equal(d("25")))
	assert.Equal(t, "10.00", balanceOf(t, svc, userID))
}
