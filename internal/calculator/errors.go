package calculator

import "errors"

// Input-validation faults. The expense is rejected and nothing is resolved.
var (
	ErrNoParticipants       = errors.New("at least one split recipient is required")
	ErrDuplicateParticipant = errors.New("split recipient listed more than once")
	ErrEmptyUserID          = errors.New("user id is required")
	ErrNegativeAmount       = errors.New("amounts cannot be negative")
	ErrPayerSumMismatch     = errors.New("payer amounts must sum to the expense total")
	ErrSplitSumMismatch     = errors.New("exact amounts must sum to the expense total")
	ErrMissingExactAmount   = errors.New("exact amount required for every recipient")
	ErrInvalidPercentageSum = errors.New("percentages must sum to exactly 100")
	ErrInvalidShares        = errors.New("shares must be positive and non-empty")
	ErrUnknownSplitType     = errors.New("unknown split type")
)

// ErrUnbalancedInput is an invariant fault: balances handed to the
// simplifier did not sum to zero. It points at an aggregation bug or corrupt
// data and must never be corrected silently.
var ErrUnbalancedInput = errors.New("balances do not sum to zero")

var validationErrors = []error{
	ErrNoParticipants,
	ErrDuplicateParticipant,
	ErrEmptyUserID,
	ErrNegativeAmount,
	ErrPayerSumMismatch,
	ErrSplitSumMismatch,
	ErrMissingExactAmount,
	ErrInvalidPercentageSum,
	ErrInvalidShares,
	ErrUnknownSplitType,
}

// IsValidationError reports whether err rejects user input.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInvariantFault reports whether err signals an internal consistency failure.
func IsInvariantFault(err error) bool {
	return errors.Is(err, ErrUnbalancedInput)
}
