package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/fx"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func rates(pairs ...string) *fx.StaticProvider {
	p := fx.NewStaticProvider()
	for i := 0; i+2 < len(pairs); i += 3 {
		p.Set(models.ExchangeRate{
			From: money.Code(pairs[i]),
			To:   money.Code(pairs[i+1]),
			Rate: decimal.RequireFromString(pairs[i+2]),
			AsOf: time.Now(),
		})
	}
	return p
}

// resolveEqual resolves an EQUAL expense paid in full by payer.
func resolveEqual(t *testing.T, id string, total money.Money, payer string, members ...string) []models.ResolvedSplit {
	t.Helper()
	e := &models.Expense{
		ID:        id,
		GroupID:   "g",
		Total:     total,
		SplitType: models.SplitEqual,
		Payers:    []models.Payer{{UserID: payer, Amount: total}},
	}
	for _, m := range members {
		e.Splits = append(e.Splits, models.SplitEntry{UserID: m})
	}
	splits, err := calculator.ResolveExpense(e)
	if err != nil {
		t.Fatalf("resolve %s: %v", id, err)
	}
	return splits
}

func assertBalances(t *testing.T, got, want []models.Balance) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d balances %+v, want %d %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("balance[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func sumNets(balances []models.Balance) map[money.Code]int64 {
	out := make(map[money.Code]int64)
	for _, b := range balances {
		out[b.Currency] += b.Net
	}
	return out
}

func TestApply(t *testing.T) {
	l := New(fx.NewNormalizer(nil), nil)
	ctx := context.Background()

	got, err := l.Apply(ctx, "g", resolveEqual(t, "e1", money.New(100, "USD"), "A", "A", "B", "C"), "")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	assertBalances(t, got, []models.Balance{
		{GroupID: "g", UserID: "A", Currency: "USD", Net: 66},
		{GroupID: "g", UserID: "B", Currency: "USD", Net: -33},
		{GroupID: "g", UserID: "C", Currency: "USD", Net: -33},
	})

	if !l.Loaded("g") || l.Loaded("other") {
		t.Error("Loaded reports the wrong groups")
	}

	transfers, err := l.SimplifyDebts(ctx, "g", "")
	if err != nil {
		t.Fatalf("SimplifyDebts failed: %v", err)
	}
	want := []models.Transfer{
		{From: "B", To: "A", Amount: money.New(33, "USD")},
		{From: "C", To: "A", Amount: money.New(33, "USD")},
	}
	if len(transfers) != len(want) {
		t.Fatalf("got %v, want %v", transfers, want)
	}
	for i := range want {
		if transfers[i] != want[i] {
			t.Errorf("transfer[%d] = %+v, want %+v", i, transfers[i], want[i])
		}
	}
}

func TestApplyRetract_RestoresState(t *testing.T) {
	l := New(fx.NewNormalizer(nil), nil)
	ctx := context.Background()

	base := [][]models.ResolvedSplit{
		resolveEqual(t, "e1", money.New(1001, "USD"), "A", "A", "B", "C"),
		resolveEqual(t, "e2", money.New(700, "EUR"), "B", "A", "B"),
		resolveEqual(t, "e3", money.New(3, "USD"), "C", "A", "B", "C", "D"),
	}
	for _, s := range base {
		if _, err := l.Apply(ctx, "g", s, ""); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}
	before := l.Balances("g")

	extra := resolveEqual(t, "e4", money.New(999, "USD"), "D", "B", "D")
	if _, err := l.Apply(ctx, "g", extra, ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := l.Retract("g", extra); err != nil {
		t.Fatalf("Retract failed: %v", err)
	}
	assertBalances(t, l.Balances("g"), before)

	for _, s := range base {
		if _, err := l.Retract("g", s); err != nil {
			t.Fatalf("Retract failed: %v", err)
		}
	}
	if got := l.Balances("g"); len(got) != 0 {
		t.Errorf("expected empty group after retracting everything, got %+v", got)
	}
}

func TestRetract_AfterRateChange(t *testing.T) {
	provider := rates("EUR", "USD", "1.1")
	l := New(fx.NewNormalizer(provider), nil)
	ctx := context.Background()

	splits := resolveEqual(t, "e1", money.New(1000, "EUR"), "A", "A", "B", "C")
	got, err := l.Apply(ctx, "g", splits, "USD")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if sum := sumNets(got)["USD"]; sum != 0 {
		t.Errorf("normalized deltas sum to %d, want 0", sum)
	}

	provider.Set(models.ExchangeRate{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.3"), AsOf: time.Now()})
	if _, err := l.Retract("g", splits); err != nil {
		t.Fatalf("Retract failed: %v", err)
	}
	if got := l.Balances("g"); len(got) != 0 {
		t.Errorf("retract after rate change left %+v", got)
	}
}

func TestReplay_OrderIndependent(t *testing.T) {
	ctx := context.Background()
	currencies := []money.Code{"USD", "EUR", "JPY"}
	members := []string{"ann", "bea", "cal", "dov", "eli"}
	rng := rand.New(rand.NewSource(7))

	var batches [][]models.ResolvedSplit
	for i := 0; i < 25; i++ {
		n := rng.Intn(len(members)) + 1
		total := money.New(rng.Int63n(100000), currencies[rng.Intn(len(currencies))])
		batches = append(batches, resolveEqual(t, fmt.Sprintf("e%02d", i), total, members[rng.Intn(len(members))], members[:n]...))
	}

	reference := New(fx.NewNormalizer(nil), nil)
	if err := reference.Rebuild(ctx, "g", batches, ""); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	want := reference.Balances("g")
	for c, sum := range sumNets(want) {
		if sum != 0 {
			t.Errorf("%s nets sum to %d", c, sum)
		}
	}

	for round := 0; round < 20; round++ {
		order := rng.Perm(len(batches))
		l := New(fx.NewNormalizer(nil), nil)
		for _, i := range order {
			if _, err := l.Apply(ctx, "g", batches[i], ""); err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
		}
		assertBalances(t, l.Balances("g"), want)
	}
}

func TestApply_Errors(t *testing.T) {
	l := New(fx.NewNormalizer(rates()), nil)
	ctx := context.Background()
	splits := resolveEqual(t, "e1", money.New(100, "USD"), "A", "A", "B")

	if _, err := l.Apply(ctx, "g", splits, ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"apply twice", func() error {
			_, err := l.Apply(ctx, "g", splits, "")
			return err
		}, ErrAlreadyApplied},
		{"retract unknown expense", func() error {
			_, err := l.Retract("g", resolveEqual(t, "e9", money.New(1, "USD"), "A", "A"))
			return err
		}, ErrNotApplied},
		{"retract in unknown group", func() error {
			_, err := l.Retract("nope", splits)
			return err
		}, ErrNotApplied},
		{"retract different splits", func() error {
			_, err := l.Retract("g", resolveEqual(t, "e1", money.New(200, "USD"), "A", "A", "B"))
			return err
		}, ErrRetractMismatch},
		{"empty splits", func() error {
			_, err := l.Apply(ctx, "g", nil, "")
			return err
		}, ErrInvalidSplits},
		{"mixed expense ids", func() error {
			mixed := append(resolveEqual(t, "x1", money.New(2, "USD"), "A", "A"), resolveEqual(t, "x2", money.New(2, "USD"), "A", "A")...)
			_, err := l.Apply(ctx, "g", mixed, "")
			return err
		}, ErrInvalidSplits},
		{"paid and owed in different currencies", func() error {
			_, err := l.Apply(ctx, "g", []models.ResolvedSplit{
				{ExpenseID: "bad", UserID: "A", Paid: money.New(1, "USD"), Owed: money.New(1, "EUR")},
			}, "")
			return err
		}, money.ErrCurrencyMismatch},
		{"missing rate", func() error {
			_, err := l.Apply(ctx, "g", resolveEqual(t, "e2", money.New(100, "GBP"), "A", "A", "B"), "USD")
			return err
		}, fx.ErrRateUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := l.Balances("g")
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			assertBalances(t, l.Balances("g"), before)
		})
	}
}

func TestApply_OverflowIsAllOrNothing(t *testing.T) {
	l := New(fx.NewNormalizer(nil), nil)
	ctx := context.Background()
	huge := func(id string) []models.ResolvedSplit {
		return []models.ResolvedSplit{
			{ExpenseID: id, UserID: "A", Paid: money.New(math.MaxInt64, "USD"), Owed: money.New(0, "USD")},
			{ExpenseID: id, UserID: "B", Paid: money.New(0, "USD"), Owed: money.New(math.MaxInt64, "USD")},
		}
	}

	if _, err := l.Apply(ctx, "g", huge("h1"), ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	before := l.Balances("g")
	if _, err := l.Apply(ctx, "g", huge("h2"), ""); !errors.Is(err, money.ErrOverflow) {
		t.Fatalf("error = %v, want ErrOverflow", err)
	}
	assertBalances(t, l.Balances("g"), before)

	// h2 was never booked, so it can be retried after h1 is retracted.
	if _, err := l.Retract("g", huge("h1")); err != nil {
		t.Fatalf("Retract failed: %v", err)
	}
	if _, err := l.Apply(ctx, "g", huge("h2"), ""); err != nil {
		t.Fatalf("Apply after retract failed: %v", err)
	}
}

func TestMultiCurrency_NormalizedSettles(t *testing.T) {
	l := New(fx.NewNormalizer(rates("EUR", "USD", "1.1")), nil)
	ctx := context.Background()

	// A pays 10 EUR for A and B; B pays 5 USD for A and B.
	for _, s := range [][]models.ResolvedSplit{
		resolveEqual(t, "e1", money.New(1000, "EUR"), "A", "A", "B"),
		resolveEqual(t, "e2", money.New(500, "USD"), "B", "A", "B"),
	} {
		if _, err := l.Apply(ctx, "g", s, ""); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}

	views, err := l.GroupBalances(ctx, "g", "USD")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	want := []models.BalanceView{
		{UserID: "A", Currency: "USD", Net: 300, DisplayAmount: "$3.00"},
		{UserID: "B", Currency: "USD", Net: -300, DisplayAmount: "-$3.00"},
	}
	if len(views) != len(want) {
		t.Fatalf("got %+v, want %+v", views, want)
	}
	for i := range want {
		if views[i] != want[i] {
			t.Errorf("view[%d] = %+v, want %+v", i, views[i], want[i])
		}
	}

	transfers, err := l.SimplifyDebts(ctx, "g", "USD")
	if err != nil {
		t.Fatalf("SimplifyDebts failed: %v", err)
	}
	if len(transfers) != 1 || transfers[0] != (models.Transfer{From: "B", To: "A", Amount: money.New(300, "USD")}) {
		t.Errorf("got %+v, want one B->A $3.00 transfer", transfers)
	}

	native, err := l.SimplifyDebts(ctx, "g", "")
	if err != nil {
		t.Fatalf("SimplifyDebts failed: %v", err)
	}
	wantNative := []models.Transfer{
		{From: "B", To: "A", Amount: money.New(500, "EUR")},
		{From: "A", To: "B", Amount: money.New(250, "USD")},
	}
	if len(native) != len(wantNative) {
		t.Fatalf("got %+v, want %+v", native, wantNative)
	}
	for i := range wantNative {
		if native[i] != wantNative[i] {
			t.Errorf("transfer[%d] = %+v, want %+v", i, native[i], wantNative[i])
		}
	}
}

func TestNormalize_ResidueKeepsZeroSum(t *testing.T) {
	l := New(fx.NewNormalizer(rates("EUR", "USD", "1.5")), nil)
	nets := map[key]int64{
		{"A", "EUR"}: 2,
		{"B", "EUR"}: -1,
		{"C", "EUR"}: -1,
	}

	// 3, -1.5, -1.5 round to 3, -2, -2; the spare unit goes to A.
	got, err := l.normalize(context.Background(), "g", nets, "USD")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := map[key]int64{{"A", "USD"}: 4, {"B", "USD"}: -2, {"C", "USD"}: -2}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%v = %d, want %d", k, got[k], v)
		}
	}
}

func TestNormalize_RandomSetsSumToZero(t *testing.T) {
	l := New(fx.NewNormalizer(rates("EUR", "USD", "1.0837", "JPY", "USD", "0.00663", "KWD", "USD", "3.2561")), nil)
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 100; round++ {
		nets := make(map[key]int64)
		for _, c := range []money.Code{"EUR", "JPY", "KWD", "USD"} {
			var sum int64
			n := rng.Intn(6) + 1
			for i := 0; i < n; i++ {
				v := rng.Int63n(2000001) - 1000000
				nets[key{fmt.Sprintf("u%d", i), c}] = v
				sum += v
			}
			nets[key{fmt.Sprintf("u%d", n), c}] -= sum
		}

		got, err := l.normalize(context.Background(), "g", nets, "USD")
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		var sum int64
		for k, v := range got {
			if k.currency != "USD" {
				t.Fatalf("round %d: entry left in %s", round, k.currency)
			}
			sum += v
		}
		if sum != 0 {
			t.Fatalf("round %d: normalized set sums to %d", round, sum)
		}
	}
}

func TestSimplifyDebts_InvariantFault(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := New(fx.NewNormalizer(nil), metrics.New(reg))

	g := l.group("g", true)
	g.nets[key{"A", "USD"}] = 5

	_, err := l.SimplifyDebts(context.Background(), "g", "")
	if !errors.Is(err, calculator.ErrUnbalancedInput) {
		t.Fatalf("error = %v, want ErrUnbalancedInput", err)
	}

	expected := `
# HELP splitledger_invariant_faults_total Balance sets that failed the zero-sum invariant.
# TYPE splitledger_invariant_faults_total counter
splitledger_invariant_faults_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "splitledger_invariant_faults_total"); err != nil {
		t.Error(err)
	}
}

func TestGroupBalances_Native(t *testing.T) {
	l := New(fx.NewNormalizer(nil), nil)
	ctx := context.Background()
	if _, err := l.Apply(ctx, "g", resolveEqual(t, "e1", money.New(300, "JPY"), "A", "A", "B", "C"), ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	views, err := l.GroupBalances(ctx, "g", "")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	want := []models.BalanceView{
		{UserID: "A", Currency: "JPY", Net: 200, DisplayAmount: "¥200"},
		{UserID: "B", Currency: "JPY", Net: -100, DisplayAmount: "-¥100"},
		{UserID: "C", Currency: "JPY", Net: -100, DisplayAmount: "-¥100"},
	}
	if len(views) != len(want) {
		t.Fatalf("got %+v, want %+v", views, want)
	}
	for i := range want {
		if views[i] != want[i] {
			t.Errorf("view[%d] = %+v, want %+v", i, views[i], want[i])
		}
	}

	empty, err := l.GroupBalances(ctx, "unknown", "USD")
	if err != nil || len(empty) != 0 {
		t.Errorf("unknown group: got %+v, %v", empty, err)
	}
}

func TestForget(t *testing.T) {
	l := New(fx.NewNormalizer(nil), nil)
	if _, err := l.Apply(context.Background(), "g", resolveEqual(t, "e1", money.New(10, "USD"), "A", "B"), ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	l.Forget("g")
	if l.Loaded("g") || len(l.Balances("g")) != 0 {
		t.Error("Forget did not drop group state")
	}
}

func TestConcurrentApply(t *testing.T) {
	ctx := context.Background()
	var batches [][]models.ResolvedSplit
	for i := 0; i < 64; i++ {
		payer := []string{"A", "B", "C", "D"}[i%4]
		batches = append(batches, resolveEqual(t, fmt.Sprintf("e%d", i), money.New(int64(100+i), "USD"), payer, "A", "B", "C", "D"))
	}

	sequential := New(fx.NewNormalizer(nil), nil)
	if err := sequential.Rebuild(ctx, "g", batches, ""); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	l := New(fx.NewNormalizer(nil), nil)
	var wg sync.WaitGroup
	errs := make(chan error, len(batches))
	for _, b := range batches {
		wg.Add(2)
		go func(splits []models.ResolvedSplit) {
			defer wg.Done()
			if _, err := l.Apply(ctx, "g", splits, ""); err != nil {
				errs <- err
			}
		}(b)
		go func() {
			defer wg.Done()
			if _, err := l.SimplifyDebts(ctx, "g", ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call failed: %v", err)
	}

	assertBalances(t, l.Balances("g"), sequential.Balances("g"))
}
