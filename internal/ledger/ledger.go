// Package ledger keeps running per-member balances for every group.
//
// Balances are derived state: each applied expense adds paid − owed per
// (member, currency) and the ledger books exactly what it added, so a
// retraction subtracts the same integers and replaying the expense list in
// any order yields the same map. A group with no entries is fully settled.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/fx"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

var (
	ErrAlreadyApplied  = errors.New("expense already applied to group")
	ErrNotApplied      = errors.New("expense not applied to group")
	ErrRetractMismatch = errors.New("retracted splits differ from the applied splits")
	ErrInvalidSplits   = errors.New("resolved splits must be non-empty and belong to one expense")
)

type key struct {
	user     string
	currency money.Code
}

// booking is what one expense contributed to a group.
type booking struct {
	expenseID string
	splits    []models.ResolvedSplit
	deltas    map[key]int64
}

type group struct {
	mu      sync.RWMutex
	nets    map[key]int64
	journal map[string]booking
}

func newGroup() *group {
	return &group{nets: make(map[key]int64), journal: make(map[string]booking)}
}

// add applies sign × deltas. Nothing changes if any entry would overflow.
func (g *group) add(deltas map[key]int64, sign int64) error {
	next := make(map[key]int64, len(deltas))
	for k, d := range deltas {
		cur := g.nets[k]
		var v int64
		var ok bool
		if sign > 0 {
			v, ok = addInt64(cur, d)
		} else {
			v, ok = subInt64(cur, d)
		}
		if !ok {
			return fmt.Errorf("%w: %s %s", money.ErrOverflow, k.user, k.currency)
		}
		next[k] = v
	}
	for k, v := range next {
		if v == 0 {
			delete(g.nets, k)
		} else {
			g.nets[k] = v
		}
	}
	return nil
}

// Ledger is safe for concurrent use. Writers on one group are exclusive;
// readers take a snapshot and do any currency work outside the lock.
type Ledger struct {
	normalizer *fx.Normalizer
	metrics    *metrics.Metrics

	mu     sync.Mutex
	groups map[string]*group
}

// New creates an empty ledger. m may be nil.
func New(normalizer *fx.Normalizer, m *metrics.Metrics) *Ledger {
	return &Ledger{
		normalizer: normalizer,
		metrics:    m,
		groups:     make(map[string]*group),
	}
}

func (l *Ledger) group(groupID string, create bool) *group {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.groups[groupID]
	if !ok && create {
		g = newGroup()
		l.groups[groupID] = g
	}
	return g
}

// Loaded reports whether groupID has been applied to or rebuilt.
func (l *Ledger) Loaded(groupID string) bool {
	return l.group(groupID, false) != nil
}

// Forget drops a group's state. The next access starts from empty.
func (l *Ledger) Forget(groupID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.groups, groupID)
}

// Apply adds one expense's resolved splits to the group's balances and
// returns the resulting balances. With a reporting currency the deltas are
// normalized before booking. The update is all-or-nothing.
func (l *Ledger) Apply(ctx context.Context, groupID string, splits []models.ResolvedSplit, reporting money.Code) ([]models.Balance, error) {
	b, err := l.book(ctx, groupID, splits, reporting)
	if err != nil {
		return nil, err
	}

	g := l.group(groupID, true)
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.journal[b.expenseID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyApplied, b.expenseID)
	}
	if err := g.add(b.deltas, 1); err != nil {
		return nil, err
	}
	g.journal[b.expenseID] = b
	l.metrics.LedgerOp(metrics.OpApply)
	return toBalances(groupID, g.nets), nil
}

// Retract removes a previously applied expense. splits must equal the
// splits it was applied with; the booked deltas are subtracted unchanged.
func (l *Ledger) Retract(groupID string, splits []models.ResolvedSplit) ([]models.Balance, error) {
	expenseID, err := expenseOf(splits)
	if err != nil {
		return nil, err
	}

	g := l.group(groupID, false)
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotApplied, expenseID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.journal[expenseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotApplied, expenseID)
	}
	if !sameSplits(b.splits, sortedCopy(splits)) {
		return nil, fmt.Errorf("%w: %s", ErrRetractMismatch, expenseID)
	}
	if err := g.add(b.deltas, -1); err != nil {
		return nil, err
	}
	delete(g.journal, expenseID)
	l.metrics.LedgerOp(metrics.OpRetract)
	return toBalances(groupID, g.nets), nil
}

// Rebuild replaces a group's state with a full replay of batches, one batch
// per expense. The previous state is kept if any batch fails.
func (l *Ledger) Rebuild(ctx context.Context, groupID string, batches [][]models.ResolvedSplit, reporting money.Code) error {
	fresh := newGroup()
	for _, splits := range batches {
		b, err := l.book(ctx, groupID, splits, reporting)
		if err != nil {
			return err
		}
		if _, ok := fresh.journal[b.expenseID]; ok {
			return fmt.Errorf("%w: %s", ErrAlreadyApplied, b.expenseID)
		}
		if err := fresh.add(b.deltas, 1); err != nil {
			return err
		}
		fresh.journal[b.expenseID] = b
	}

	g := l.group(groupID, true)
	g.mu.Lock()
	g.nets, g.journal = fresh.nets, fresh.journal
	g.mu.Unlock()

	l.metrics.LedgerOp(metrics.OpRebuild)
	slog.Debug("Rebuilt group balances", "group_id", groupID, "expenses", len(batches), "entries", len(fresh.nets))
	return nil
}

// Balances returns a copy of the group's non-zero balances sorted by user
// ID, then currency.
func (l *Ledger) Balances(groupID string) []models.Balance {
	return toBalances(groupID, l.snapshot(groupID))
}

func (l *Ledger) snapshot(groupID string) map[key]int64 {
	g := l.group(groupID, false)
	if g == nil {
		return map[key]int64{}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[key]int64, len(g.nets))
	for k, v := range g.nets {
		out[k] = v
	}
	return out
}

// GroupBalances returns display rows for the group. Without a reporting
// currency there is one row per member per currency; with one, each member's
// balances are normalized and folded into a single row. Settled members are
// omitted.
func (l *Ledger) GroupBalances(ctx context.Context, groupID string, reporting money.Code) ([]models.BalanceView, error) {
	nets := l.snapshot(groupID)
	if reporting != "" {
		var err error
		if nets, err = l.normalize(ctx, groupID, nets, reporting); err != nil {
			return nil, err
		}
	}

	balances := toBalances(groupID, nets)
	views := make([]models.BalanceView, len(balances))
	for i, b := range balances {
		views[i] = models.BalanceView{
			UserID:        b.UserID,
			Currency:      b.Currency,
			Net:           b.Net,
			DisplayAmount: money.New(b.Net, b.Currency).Format(),
		}
	}
	return views, nil
}

// SimplifyDebts computes settlement transfers for the group. With a
// reporting currency all balances are normalized and simplified once;
// otherwise each currency is simplified on its own, in ascending code order.
func (l *Ledger) SimplifyDebts(ctx context.Context, groupID string, reporting money.Code) ([]models.Transfer, error) {
	nets := l.snapshot(groupID)
	l.metrics.LedgerOp(metrics.OpSimplify)

	if reporting != "" {
		normalized, err := l.normalize(ctx, groupID, nets, reporting)
		if err != nil {
			return nil, err
		}
		transfers, err := calculator.SimplifyDebts(toBalances(groupID, normalized))
		if err != nil {
			return nil, l.fault(groupID, err)
		}
		l.metrics.Transfers(len(transfers))
		return transfers, nil
	}

	transfers := []models.Transfer{}
	for _, slice := range byCurrency(toBalances(groupID, nets)) {
		t, err := calculator.SimplifyDebts(slice)
		if err != nil {
			return nil, l.fault(groupID, err)
		}
		transfers = append(transfers, t...)
	}
	l.metrics.Transfers(len(transfers))
	return transfers, nil
}

// fault logs and counts invariant violations and passes err through.
func (l *Ledger) fault(groupID string, err error) error {
	if calculator.IsInvariantFault(err) {
		slog.Error("Balance invariant violated", "fault", "invariant", "group_id", groupID, "error", err)
		l.metrics.InvariantFault()
	}
	return err
}

// book computes an expense's deltas without touching any group.
func (l *Ledger) book(ctx context.Context, groupID string, splits []models.ResolvedSplit, reporting money.Code) (booking, error) {
	expenseID, err := expenseOf(splits)
	if err != nil {
		return booking{}, err
	}

	deltas := make(map[key]int64, len(splits))
	for _, s := range splits {
		if s.Paid.Currency != s.Owed.Currency {
			return booking{}, fmt.Errorf("%w: split %s/%s", money.ErrCurrencyMismatch, expenseID, s.UserID)
		}
		k := key{s.UserID, s.Paid.Currency}
		v, ok := addInt64(deltas[k], s.Net())
		if !ok {
			return booking{}, money.ErrOverflow
		}
		deltas[k] = v
	}

	if reporting != "" {
		if deltas, err = l.normalize(ctx, groupID, deltas, reporting); err != nil {
			return booking{}, err
		}
	}
	for k, v := range deltas {
		if v == 0 {
			delete(deltas, k)
		}
	}
	return booking{expenseID: expenseID, splits: sortedCopy(splits), deltas: deltas}, nil
}

func expenseOf(splits []models.ResolvedSplit) (string, error) {
	if len(splits) == 0 {
		return "", ErrInvalidSplits
	}
	id := splits[0].ExpenseID
	if id == "" {
		return "", fmt.Errorf("%w: missing expense id", ErrInvalidSplits)
	}
	for _, s := range splits[1:] {
		if s.ExpenseID != id {
			return "", fmt.Errorf("%w: %s and %s", ErrInvalidSplits, id, s.ExpenseID)
		}
	}
	return id, nil
}

func sortedCopy(splits []models.ResolvedSplit) []models.ResolvedSplit {
	out := make([]models.ResolvedSplit, len(splits))
	copy(out, splits)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.Paid.Currency != b.Paid.Currency {
			return a.Paid.Currency < b.Paid.Currency
		}
		if a.Paid.MinorUnits != b.Paid.MinorUnits {
			return a.Paid.MinorUnits < b.Paid.MinorUnits
		}
		return a.Owed.MinorUnits < b.Owed.MinorUnits
	})
	return out
}

func sameSplits(a, b []models.ResolvedSplit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toBalances(groupID string, nets map[key]int64) []models.Balance {
	out := make([]models.Balance, 0, len(nets))
	for k, v := range nets {
		if v == 0 {
			continue
		}
		out = append(out, models.Balance{GroupID: groupID, UserID: k.user, Currency: k.currency, Net: v})
	}
	calculator.SortBalances(out)
	return out
}

// byCurrency splits sorted balances into per-currency slices, ordered by
// currency code.
func byCurrency(balances []models.Balance) [][]models.Balance {
	groups := make(map[money.Code][]models.Balance)
	for _, b := range balances {
		groups[b.Currency] = append(groups[b.Currency], b)
	}
	codes := make([]money.Code, 0, len(groups))
	for c := range groups {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	out := make([][]models.Balance, len(codes))
	for i, c := range codes {
		out[i] = groups[c]
	}
	return out
}

func addInt64(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

func subInt64(a, b int64) (int64, bool) {
	d := a - b
	if (b > 0 && d > a) || (b < 0 && d < a) {
		return 0, false
	}
	return d, true
}
