package delta

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(d("0.01")))
	assert.NoError(t, ValidateAmount(d("100")))
	assert.ErrorIs(t, ValidateAmount(d("0")), ErrNonPositiveAmount)
	assert.ErrorIs(t, ValidateAmount(d("-3")), ErrNonPositiveAmount)
	assert.ErrorIs(t, ValidateAmount(d("1.001")), ErrAmountPrecision)
	assert.NoError(t, ValidateAmount(MaxAmount))

	for _, s := range []string{"1e20", "100000000000000000000", "1000000000000000000.00"} {
		assert.ErrorIs(t, ValidateAmount(d(s)), ErrAmountTooLarge, s)
	}
}

func TestWithinCap(t *testing.T) {
	assert.NoError(t, withinCap(d("10"), MaxAmount))
	assert.ErrorIs(t, withinCap(d("10"), MaxAmount.Add(d("0.01"))), ErrAmountTooLarge)
}

func TestRejectionsShareValidationKind(t *testing.T) {
	for _, err := range []error{
		ErrNonPositiveAmount, ErrAmountTooLarge, ErrWalletInactive, ErrWalletFrozen, ErrInsufficientBalance,
		ErrSelfTransfer, ErrAlreadyReversed, ErrNotCompleted, ErrReversalOfReversal,
		ErrProductUnavailable, ErrInsufficientStock, ErrInvalidQuantity,
	} {
		assert.True(t, errors.Is(err, ErrValidation), err.Error())
		assert.NotEmpty(t, reasonOf(err))
	}

	wrapped := fmt.Errorf("%w: have 40.00 Δ, need 60.00 Δ", ErrInsufficientBalance)
	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.ErrorIs(t, wrapped, ErrInsufficientBalance)
	assert.Equal(t, "insufficient_balance", reasonOf(wrapped))

	assert.False(t, errors.Is(ErrWalletNotFound, ErrValidation))
	assert.Equal(t, "", reasonOf(ErrInternal))
}

func TestTransactionDirection(t *testing.T) {
	credit := &Transaction{Amount: d("25"), BalanceBefore: d("10"), BalanceAfter: d("35")}
	debit := &Transaction{Amount: d("25"), BalanceBefore: d("35"), BalanceAfter: d("10")}

	assert.True(t, credit.IsCredit())
	assert.False(t, debit.IsCredit())
	assert.True(t, credit.SignedAmount().Equal(d("25")))
	assert.True(t, debit.SignedAmount().Equal(d("-25")))
	assert.True(t, sumSigned([]Transaction{*credit, *debit}).IsZero())
}

func TestReversible(t *testing.T) {
	assert.NoError(t, reversible(&Transaction{Type: TxEarn, Status: StatusCompleted}))
	assert.ErrorIs(t, reversible(&Transaction{Type: TxReversal, Status: StatusCompleted}), ErrReversalOfReversal)
	assert.ErrorIs(t, reversible(&Transaction{Type: TxSpend, Status: StatusCompleted, IsReversed: true}), ErrAlreadyReversed)
	assert.ErrorIs(t, reversible(&Transaction{Type: TxSpend, Status: StatusPending}), ErrNotCompleted)
}

func TestCheckMutable(t *testing.T) {
	assert.NoError(t, checkMutable(&Wallet{IsActive: true}))
	assert.ErrorIs(t, checkMutable(&Wallet{IsActive: false}), ErrWalletInactive)
	assert.ErrorIs(t, checkMutable(&Wallet{IsActive: true, IsFrozen: true}), ErrWalletFrozen)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100.00 Δ", Format(d("100")))
	assert.Equal(t, "0.50 Δ", Format(d("0.5")))
}

func TestJSONMapScanValue(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"reason":"typo","n":2}`)))
	assert.Equal(t, "typo", m["reason"])
	assert.EqualValues(t, 2, m["n"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	v, err := JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	assert.Error(t, m.Scan(42))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Number: 1, Size: DefaultPageSize}, Page{}.Normalize())
	assert.Equal(t, Page{Number: 3, Size: MaxPageSize}, Page{Number: 3, Size: 1000}.Normalize())
	assert.Equal(t, 40, Page{Number: 3, Size: 20}.offset())
}

func TestClampBoardSize(t *testing.T) {
	assert.Equal(t, DefaultBoardSize, ClampBoardSize(0))
	assert.Equal(t, 25, ClampBoardSize(25))
	assert.Equal(t, MaxBoardSize, ClampBoardSize(5000))
}

func TestTypesValid(t *testing.T) {
	assert.True(t, TxAdminDeduct.Valid())
	assert.False(t, TransactionType("steal").Valid())
	assert.True(t, ProductCosmetic.Valid())
	assert.False(t, ProductType("car").Valid())
}
