package api

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestJSONCodec(t *testing.T) {
	codec := JSONCodec{}
	if codec.Name() != "json" {
		t.Fatalf("Name() = %q, want json", codec.Name())
	}

	t.Run("percentages stay exact", func(t *testing.T) {
		p := decimal.RequireFromString("33.333333333333333333")
		data, err := codec.Marshal(&SplitEntry{UserID: "a", Percentage: &p})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"33.333333333333333333"`) {
			t.Errorf("percentage not encoded as an exact string: %s", data)
		}

		var got SplitEntry
		if err := codec.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if got.Percentage == nil || !got.Percentage.Equal(p) {
			t.Errorf("percentage = %v, want %s", got.Percentage, p)
		}
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		var req GetGroupBalancesRequest
		if err := codec.Unmarshal([]byte(`{"group_id":"g","groupId":"typo"}`), &req); err == nil {
			t.Error("expected error for unknown field")
		}
	})

	t.Run("empty body decodes to zero value", func(t *testing.T) {
		var req DeleteExpenseRequest
		if err := codec.Unmarshal(nil, &req); err != nil {
			t.Errorf("Unmarshal(nil) failed: %v", err)
		}
	})
}
