package delta

import (
	"errors"
	"net/http"

	"github.com/dsatschool/delta-api/internal/pkg/errorhandler"
)

// ErrValidation is the single kind every business-rule rejection belongs to.
var ErrValidation = errors.New("validation failed")

// ErrInternal wraps infrastructure failures with the failing step.
var ErrInternal = errors.New("internal ledger error")

type ruleError struct {
	msg    string
	reason string
}

func (e *ruleError) Error() string        { return e.msg }
func (e *ruleError) Is(target error) bool { return target == ErrValidation }

func rejection(reason, msg string) error {
	return &ruleError{msg: msg, reason: reason}
}

var (
	ErrNonPositiveAmount   = rejection("non_positive_amount", "amount must be greater than zero")
	ErrAmountPrecision     = rejection("amount_precision", "amount supports at most two decimal places")
	ErrAmountTooLarge      = rejection("amount_too_large", "amount exceeds the largest supported balance")
	ErrWalletInactive      = rejection("wallet_inactive", "wallet is not active")
	ErrWalletFrozen        = rejection("wallet_frozen", "wallet is frozen")
	ErrInsufficientBalance = rejection("insufficient_balance", "insufficient balance")
	ErrSelfTransfer        = rejection("self_transfer", "cannot transfer to yourself")
	ErrAlreadyReversed     = rejection("already_reversed", "transaction already reversed")
	ErrNotCompleted        = rejection("not_completed", "can only reverse completed transactions")
	ErrReversalOfReversal  = rejection("reversal_of_reversal", "a reversal cannot itself be reversed")
	ErrProductUnavailable  = rejection("product_unavailable", "product is not available")
	ErrInsufficientStock   = rejection("insufficient_stock", "insufficient product quantity available")
	ErrInvalidQuantity     = rejection("invalid_quantity", "quantity must be at least 1")
	ErrInvalidType         = rejection("invalid_type", "invalid transaction type")
	ErrInvalidDateRange    = rejection("invalid_date_range", "start of range must be before its end")
	ErrInvalidProductType  = rejection("invalid_product_type", "invalid product type")
	ErrInvalidDirection    = rejection("invalid_direction", "direction must be add or deduct")
	ErrInvalidRule         = rejection("invalid_rule", "earning rule needs a name and a non-negative amount")
	ErrInvalidProduct      = rejection("invalid_product", "limited products need a non-negative quantity")
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrRuleNotFound        = errors.New("earning rule not found")
	ErrIdempotencyConflict = errors.New("idempotency key already used for a different operation")
	ErrExportDisabled      = errors.New("statement export is not configured")
	ErrLeaderboardLimit    = errors.New("leaderboard limit out of range")
)

// reasonOf returns the metrics label for a rejection, or "" for other errors.
func reasonOf(err error) string {
	var re *ruleError
	if errors.As(err, &re) {
		return re.reason
	}
	return ""
}

// HTTPErrorRules maps ledger errors to responses
var HTTPErrorRules = []errorhandler.Rule{
	{Target: ErrValidation, Status: http.StatusBadRequest, Code: "VALIDATION_FAILED"},
	{Target: ErrWalletNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrTransactionNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrProductNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrUserNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrRuleNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrIdempotencyConflict, Status: http.StatusConflict, Code: "CONFLICT"},
	{Target: ErrExportDisabled, Status: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"},
}
