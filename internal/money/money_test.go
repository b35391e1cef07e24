package money

import (
	"errors"
	"math"
	"testing"
)

func TestAddSubtract(t *testing.T) {
	a := New(150, "USD")
	b := New(-40, "USD")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if sum.MinorUnits != 110 {
		t.Errorf("Add = %d, want 110", sum.MinorUnits)
	}

	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatalf("Subtract failed: %v", err)
	}
	if diff.MinorUnits != 190 {
		t.Errorf("Subtract = %d, want 190", diff.MinorUnits)
	}

	if _, err := a.Add(New(1, "EUR")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Add across currencies: got %v, want ErrCurrencyMismatch", err)
	}
	if _, err := a.Subtract(New(1, "EUR")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Subtract across currencies: got %v, want ErrCurrencyMismatch", err)
	}
	if _, err := a.Compare(New(1, "EUR")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Compare across currencies: got %v, want ErrCurrencyMismatch", err)
	}
}

func TestAddOverflow(t *testing.T) {
	if _, err := New(math.MaxInt64, "USD").Add(New(1, "USD")); !errors.Is(err, ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
	if _, err := New(math.MinInt64, "USD").Add(New(-1, "USD")); !errors.Is(err, ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
	if _, err := New(0, "USD").Subtract(New(math.MinInt64, "USD")); !errors.Is(err, ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

func TestCompareNegateIsZero(t *testing.T) {
	tests := []struct {
		a, b int64
		want int
	}{
		{1, 2, -1},
		{2, 2, 0},
		{3, -2, 1},
	}
	for _, tt := range tests {
		got, err := New(tt.a, "JPY").Compare(New(tt.b, "JPY"))
		if err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("Compare(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}

	if n := New(7, "USD").Negate(); n.MinorUnits != -7 || n.Currency != "USD" {
		t.Errorf("Negate = %+v", n)
	}
	if !Zero("EUR").IsZero() {
		t.Error("Zero should be zero")
	}
	if New(-1, "EUR").IsZero() {
		t.Error("-1 should not be zero")
	}
}

func TestMultiplyByRatio(t *testing.T) {
	tests := []struct {
		name     string
		minor    int64
		num, den int64
		want     int64
		wantRes  int64
	}{
		{"exact", 1000, 25, 100, 250, 0},
		{"rounds down", 1000, 1, 3, 333, 1},
		{"rounds up", 2000, 1, 3, 667, -1},
		{"tie away from zero", 5, 1, 2, 3, -1},
		{"negative tie away from zero", -5, 1, 2, -3, 1},
		{"negative rounds toward zero", -1000, 1, 3, -333, -1},
		{"zero numerator", 1234, 0, 7, 0, 0},
		{"large values stay exact", math.MaxInt64 / 2, 2, 3, 3074457345618258602, 0},
		{"large values keep residue", math.MaxInt64 / 2, 1, 2, 2305843009213693952, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, res, err := New(tt.minor, "USD").MultiplyByRatio(tt.num, tt.den)
			if err != nil {
				t.Fatalf("MultiplyByRatio failed: %v", err)
			}
			if got.MinorUnits != tt.want {
				t.Errorf("result = %d, want %d", got.MinorUnits, tt.want)
			}
			if res.Num != tt.wantRes || res.Den != tt.den {
				t.Errorf("residue = %d/%d, want %d/%d", res.Num, res.Den, tt.wantRes, tt.den)
			}
		})
	}
}

func TestMultiplyByRatioErrors(t *testing.T) {
	if _, _, err := New(1, "USD").MultiplyByRatio(1, 0); !errors.Is(err, ErrZeroDenominator) {
		t.Errorf("got %v, want ErrZeroDenominator", err)
	}
	if _, _, err := New(math.MaxInt64, "USD").MultiplyByRatio(3, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		m    Money
		want string
	}{
		{New(105, "USD"), "$1.05"},
		{New(5, "USD"), "$0.05"},
		{New(-50, "EUR"), "-€0.50"},
		{New(300, "JPY"), "¥300"},
		{New(1234, "KWD"), "KD 1.234"},
		{New(12, "XXX"), "12 XXX"},
	}
	for _, tt := range tests {
		if got := tt.m.Format(); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.m, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	info, err := Lookup("jpy")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if info.Precision != 0 {
		t.Errorf("JPY precision = %d, want 0", info.Precision)
	}
	if _, err := Lookup("ZZZ"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Errorf("got %v, want ErrUnsupportedCurrency", err)
	}
	list := Currencies()
	for i := 1; i < len(list); i++ {
		if list[i-1].Code >= list[i].Code {
			t.Fatalf("Currencies not sorted at %d", i)
		}
	}
}

func TestSum(t *testing.T) {
	total, err := Sum("USD", New(1, "USD"), New(2, "USD"), New(3, "USD"))
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if total.MinorUnits != 6 {
		t.Errorf("Sum = %d, want 6", total.MinorUnits)
	}
	if _, err := Sum("USD", New(1, "EUR")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("got %v, want ErrCurrencyMismatch", err)
	}
}
