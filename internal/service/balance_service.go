package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
)

// Ensure BalanceService implements api.BalanceServiceHandler
var _ api.BalanceServiceHandler = (*BalanceService)(nil)

// Options tune a BalanceService.
type Options struct {
	// ReportingCurrency is used when a query names none. Empty keeps
	// balances in their native currencies.
	ReportingCurrency money.Code

	// RateLookupTimeout bounds queries that normalize currencies. Zero
	// means no extra deadline.
	RateLookupTimeout time.Duration
}

// BalanceService implements the Connect BalanceService.
//
// The expense store is authoritative; the ledger holds derived balances in
// native currencies. Every mutation runs under the group's lock so the store
// write and the ledger update are never interleaved with another writer.
type BalanceService struct {
	store  storage.Store
	ledger *ledger.Ledger
	opts   Options
	locks  *groupLocks
}

// NewBalanceService creates a BalanceService over store and l.
func NewBalanceService(store storage.Store, l *ledger.Ledger, opts Options) *BalanceService {
	return &BalanceService{
		store:  store,
		ledger: l,
		opts:   opts,
		locks:  newGroupLocks(),
	}
}

func requireUser(ctx context.Context) error {
	if middleware.GetUserID(ctx) == "" {
		return connect.NewError(connect.CodeUnauthenticated, errAuthRequired)
	}
	return nil
}

// resolve resolves an expense's splits for the ledger.
func resolve(expense *models.Expense) ([]models.ResolvedSplit, error) {
	return calculator.ResolveExpense(expense)
}

// hydrate rebuilds a group from the store unless the ledger already holds
// it. Callers hold the group lock.
func (s *BalanceService) hydrate(ctx context.Context, groupID string) error {
	if s.ledger.Loaded(groupID) {
		return nil
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	batches := make([][]models.ResolvedSplit, 0, len(expenses))
	for _, e := range expenses {
		splits, err := resolve(e)
		if err != nil {
			// A stored expense that no longer resolves is corrupt data, not bad input.
			return fmt.Errorf("%w: stored expense %s: %v", calculator.ErrUnbalancedInput, e.ID, err)
		}
		batches = append(batches, splits)
	}
	if err := s.ledger.Rebuild(ctx, groupID, batches, ""); err != nil {
		return err
	}
	slog.Info("Hydrated group balances", "group_id", groupID, "expenses", len(expenses))
	return nil
}

// reportingCurrency picks the currency for a query: the requested one, the
// server default when none is requested, or native currencies for "NATIVE".
func (s *BalanceService) reportingCurrency(requested string) (money.Code, error) {
	requested = strings.ToUpper(strings.TrimSpace(requested))
	switch requested {
	case "":
		return s.opts.ReportingCurrency, nil
	case api.NativeCurrencies:
		return "", nil
	}
	code := money.Code(requested)
	if _, err := money.Lookup(code); err != nil {
		return "", err
	}
	return code, nil
}

func (s *BalanceService) rateContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RateLookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.RateLookupTimeout)
}

// record persists a new expense and applies it to the group's balances.
func (s *BalanceService) record(ctx context.Context, expense *models.Expense) ([]models.ResolvedSplit, error) {
	if expense.GroupID == "" {
		return nil, errGroupRequired
	}
	expense.ID = uuid.New().String()

	unlock := s.locks.lock(expense.GroupID)
	defer unlock()

	if err := s.hydrate(ctx, expense.GroupID); err != nil {
		return nil, err
	}
	splits, err := resolve(expense)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Apply(ctx, expense.GroupID, splits, ""); err != nil {
		if delErr := s.store.DeleteExpense(ctx, expense.ID); delErr != nil {
			s.ledger.Forget(expense.GroupID)
			return nil, errors.Join(err, delErr)
		}
		return nil, err
	}
	return splits, nil
}

// RecordExpense validates, persists and applies a new expense.
func (s *BalanceService) RecordExpense(ctx context.Context, req *connect.Request[api.RecordExpenseRequest]) (*connect.Response[api.RecordExpenseResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	expense := toExpense(req.Msg.Expense)
	splits, err := s.record(ctx, expense)
	if err != nil {
		return nil, fail("RecordExpense", err, "group_id", expense.GroupID)
	}

	slog.Info("Expense recorded",
		"group_id", expense.GroupID,
		"expense_id", expense.ID,
		"total", expense.Total.String(),
		"split_type", expense.SplitType,
	)
	return connect.NewResponse(&api.RecordExpenseResponse{
		Expense: fromExpense(expense),
		Splits:  fromSplits(splits),
	}), nil
}

// UpdateExpense replaces an expense: the old resolution is retracted and the
// new one applied, so balances match a full replay of the edited list.
func (s *BalanceService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	expense := toExpense(req.Msg.Expense)
	splits, err := s.update(ctx, expense)
	if err != nil {
		return nil, fail("UpdateExpense", err, "group_id", expense.GroupID, "expense_id", expense.ID)
	}

	slog.Info("Expense updated", "group_id", expense.GroupID, "expense_id", expense.ID)
	return connect.NewResponse(&api.UpdateExpenseResponse{
		Expense: fromExpense(expense),
		Splits:  fromSplits(splits),
	}), nil
}

func (s *BalanceService) update(ctx context.Context, expense *models.Expense) ([]models.ResolvedSplit, error) {
	if expense.ID == "" {
		return nil, errExpenseRequired
	}
	if expense.GroupID == "" {
		return nil, errGroupRequired
	}

	unlock := s.locks.lock(expense.GroupID)
	defer unlock()

	if err := s.hydrate(ctx, expense.GroupID); err != nil {
		return nil, err
	}
	old, err := s.store.GetExpense(ctx, expense.ID)
	if err != nil {
		return nil, err
	}
	if old.GroupID != expense.GroupID {
		return nil, fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	newSplits, err := resolve(expense)
	if err != nil {
		return nil, err
	}
	oldSplits, err := resolve(old)
	if err != nil {
		return nil, fmt.Errorf("%w: stored expense %s: %v", calculator.ErrUnbalancedInput, old.ID, err)
	}

	if _, err := s.ledger.Retract(expense.GroupID, oldSplits); err != nil {
		return nil, err
	}
	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		s.restore(ctx, expense.GroupID, oldSplits)
		return nil, err
	}
	if _, err := s.ledger.Apply(ctx, expense.GroupID, newSplits, ""); err != nil {
		// Put the stored row back so store and ledger agree again.
		if restoreErr := s.store.UpdateExpense(ctx, old); restoreErr != nil {
			s.ledger.Forget(expense.GroupID)
			return nil, errors.Join(err, restoreErr)
		}
		s.restore(ctx, expense.GroupID, oldSplits)
		return nil, err
	}
	return newSplits, nil
}

// restore re-applies splits after a failed mutation. If even that fails the
// group is dropped and rebuilt from the store on next access.
func (s *BalanceService) restore(ctx context.Context, groupID string, splits []models.ResolvedSplit) {
	if _, err := s.ledger.Apply(ctx, groupID, splits, ""); err != nil {
		slog.Error("Failed to restore balances, forcing rebuild", "group_id", groupID, "error", err)
		s.ledger.Forget(groupID)
	}
}

// DeleteExpense retracts and removes an expense.
func (s *BalanceService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	groupID, expenseID := req.Msg.GroupID, req.Msg.ExpenseID
	if err := s.remove(ctx, groupID, expenseID); err != nil {
		return nil, fail("DeleteExpense", err, "group_id", groupID, "expense_id", expenseID)
	}

	slog.Info("Expense deleted", "group_id", groupID, "expense_id", expenseID)
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

func (s *BalanceService) remove(ctx context.Context, groupID, expenseID string) error {
	if groupID == "" {
		return errGroupRequired
	}
	if expenseID == "" {
		return errExpenseRequired
	}

	unlock := s.locks.lock(groupID)
	defer unlock()

	if err := s.hydrate(ctx, groupID); err != nil {
		return err
	}
	old, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if old.GroupID != groupID {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	oldSplits, err := resolve(old)
	if err != nil {
		return fmt.Errorf("%w: stored expense %s: %v", calculator.ErrUnbalancedInput, old.ID, err)
	}

	if _, err := s.ledger.Retract(groupID, oldSplits); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		s.restore(ctx, groupID, oldSplits)
		return err
	}
	return nil
}

// ResolveExpense previews how an expense would split without recording it.
func (s *BalanceService) ResolveExpense(ctx context.Context, req *connect.Request[api.ResolveExpenseRequest]) (*connect.Response[api.ResolveExpenseResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	expense := toExpense(req.Msg.Expense)
	if expense.ID == "" {
		expense.ID = "preview"
	}
	splits, err := resolve(expense)
	if err != nil {
		return nil, fail("ResolveExpense", err, "group_id", expense.GroupID)
	}

	for _, sp := range splits {
		slog.Debug("Resolved split",
			"user_id", sp.UserID,
			"paid", sp.Paid.String(),
			"owed", sp.Owed.String(),
		)
	}
	return connect.NewResponse(&api.ResolveExpenseResponse{Splits: fromSplits(splits)}), nil
}

// RecordSettlement records a payment from one member to another as an
// EXACT expense paid by the debtor for the creditor.
func (s *BalanceService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	msg := req.Msg
	transfer := models.Transfer{From: msg.FromUserID, To: msg.ToUserID, Amount: toMoney(msg.Amount)}
	if err := validateSettlement(transfer); err != nil {
		return nil, fail("RecordSettlement", err, "group_id", msg.GroupID)
	}

	expense := models.SettlementExpense(msg.GroupID, transfer, strings.TrimSpace(msg.Note))
	if _, err := s.record(ctx, expense); err != nil {
		return nil, fail("RecordSettlement", err, "group_id", msg.GroupID)
	}

	slog.Info("Settlement recorded",
		"group_id", msg.GroupID,
		"expense_id", expense.ID,
		"from", transfer.From,
		"to", transfer.To,
		"amount", transfer.Amount.String(),
	)
	return connect.NewResponse(&api.RecordSettlementResponse{Expense: fromExpense(expense)}), nil
}

func validateSettlement(t models.Transfer) error {
	if t.From == "" || t.To == "" {
		return fmt.Errorf("%w: settlement parties", calculator.ErrEmptyUserID)
	}
	if t.From == t.To {
		return fmt.Errorf("%w: %s", errSelfSettlement, t.From)
	}
	if t.Amount.MinorUnits <= 0 {
		return fmt.Errorf("%w: settlement amount must be positive", calculator.ErrNegativeAmount)
	}
	return nil
}

// GetGroupBalances returns each member's net position in the group.
func (s *BalanceService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	groupID := req.Msg.GroupID
	views, reporting, err := s.groupBalances(ctx, groupID, req.Msg.ReportingCurrency)
	if err != nil {
		return nil, fail("GetGroupBalances", err, "group_id", groupID)
	}

	return connect.NewResponse(&api.GetGroupBalancesResponse{
		Balances:          fromBalanceViews(views),
		ReportingCurrency: string(reporting),
	}), nil
}

func (s *BalanceService) groupBalances(ctx context.Context, groupID, requested string) ([]models.BalanceView, money.Code, error) {
	if groupID == "" {
		return nil, "", errGroupRequired
	}
	reporting, err := s.reportingCurrency(requested)
	if err != nil {
		return nil, "", err
	}

	// Queries take the group lock too, so an update's retract and apply
	// are never observed halfway.
	unlock := s.locks.lock(groupID)
	defer unlock()
	if err := s.hydrate(ctx, groupID); err != nil {
		return nil, "", err
	}

	ctx, cancel := s.rateContext(ctx)
	defer cancel()
	views, err := s.ledger.GroupBalances(ctx, groupID, reporting)
	if err != nil {
		return nil, "", err
	}
	return views, reporting, nil
}

// SimplifyDebts returns the transfers that would settle the group.
func (s *BalanceService) SimplifyDebts(ctx context.Context, req *connect.Request[api.SimplifyDebtsRequest]) (*connect.Response[api.SimplifyDebtsResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	groupID := req.Msg.GroupID
	transfers, err := s.simplify(ctx, groupID, req.Msg.ReportingCurrency)
	if err != nil {
		return nil, fail("SimplifyDebts", err, "group_id", groupID)
	}

	slog.Info("Debts simplified", "group_id", groupID, "transfers", len(transfers))
	return connect.NewResponse(&api.SimplifyDebtsResponse{Transfers: fromTransfers(transfers)}), nil
}

func (s *BalanceService) simplify(ctx context.Context, groupID, requested string) ([]models.Transfer, error) {
	if groupID == "" {
		return nil, errGroupRequired
	}
	reporting, err := s.reportingCurrency(requested)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(groupID)
	defer unlock()
	if err := s.hydrate(ctx, groupID); err != nil {
		return nil, err
	}

	ctx, cancel := s.rateContext(ctx)
	defer cancel()
	return s.ledger.SimplifyDebts(ctx, groupID, reporting)
}

// PutExchangeRate stores a rate for later normalization.
func (s *BalanceService) PutExchangeRate(ctx context.Context, req *connect.Request[api.PutExchangeRateRequest]) (*connect.Response[api.PutExchangeRateResponse], error) {
	if err := requireUser(ctx); err != nil {
		return nil, err
	}

	rate := toRate(req.Msg.Rate)
	if err := validateRate(rate); err != nil {
		return nil, fail("PutExchangeRate", err)
	}
	if rate.AsOf.IsZero() {
		rate.AsOf = time.Now().UTC().Truncate(time.Second)
	}
	if err := s.store.PutRate(ctx, rate); err != nil {
		return nil, fail("PutExchangeRate", err)
	}

	slog.Info("Exchange rate stored", "from", rate.From, "to", rate.To, "rate", rate.Rate.String())
	return connect.NewResponse(&api.PutExchangeRateResponse{Rate: fromRate(rate)}), nil
}

func validateRate(r models.ExchangeRate) error {
	if _, err := money.Lookup(r.From); err != nil {
		return err
	}
	if _, err := money.Lookup(r.To); err != nil {
		return err
	}
	if r.From == r.To {
		return fmt.Errorf("%w: %s to itself", errInvalidRate, r.From)
	}
	if !r.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive", errInvalidRate)
	}
	return nil
}
