package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/fx"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

var (
	errAuthRequired  = errors.New("authentication required")
	errGroupRequired = errors.New("group_id required")

	errExpenseRequired = errors.New("expense id required")
	errSelfSettlement  = errors.New("cannot settle with yourself")
	errInvalidRate     = errors.New("invalid exchange rate")
)

func isBadRequest(err error) bool {
	return errors.Is(err, errGroupRequired) ||
		errors.Is(err, errExpenseRequired) ||
		errors.Is(err, errSelfSettlement) ||
		errors.Is(err, errInvalidRate)
}

// codeOf maps domain errors onto Connect codes.
func codeOf(err error) connect.Code {
	switch {
	case calculator.IsValidationError(err),
		isBadRequest(err),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrUnsupportedCurrency),
		errors.Is(err, ledger.ErrInvalidSplits):
		return connect.CodeInvalidArgument
	case errors.Is(err, fx.ErrRateUnavailable):
		return connect.CodeUnavailable
	case errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, ledger.ErrAlreadyApplied),
		errors.Is(err, ledger.ErrNotApplied),
		errors.Is(err, ledger.ErrRetractMismatch),
		errors.Is(err, money.ErrOverflow):
		return connect.CodeFailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	default:
		return connect.CodeInternal
	}
}

// fail logs err at a level matching its cause and wraps it for Connect.
func fail(op string, err error, attrs ...any) error {
	code := codeOf(err)
	attrs = append(attrs, "error", err, "code", code)
	switch {
	case calculator.IsInvariantFault(err):
		slog.Error(op+" failed", append(attrs, "fault", "invariant")...)
	case code == connect.CodeInternal:
		slog.Error(op+" failed", attrs...)
	default:
		slog.Warn(op+" rejected", attrs...)
	}
	return connect.NewError(code, err)
}
