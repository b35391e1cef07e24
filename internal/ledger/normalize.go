package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
)

type entry struct {
	user string
	net  int64
}

// normalize converts every (member, currency) net into target and folds the
// results per member.
//
// Each currency slice sums to zero, but rounding each member separately can
// leave a residue of a few minor units. The residue is spread one unit at a
// time over the slice, largest absolute native balance first, ties by
// ascending user ID, so the converted slice also sums to exactly zero.
func (l *Ledger) normalize(ctx context.Context, groupID string, nets map[key]int64, target money.Code) (map[key]int64, error) {
	slices := make(map[money.Code][]entry)
	for k, v := range nets {
		slices[k.currency] = append(slices[k.currency], entry{k.user, v})
	}
	codes := make([]money.Code, 0, len(slices))
	for c := range slices {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	out := make(map[key]int64, len(nets))
	for _, code := range codes {
		entries := slices[code]
		sort.Slice(entries, func(i, j int) bool {
			ai, aj := abs(entries[i].net), abs(entries[j].net)
			if ai != aj {
				return ai > aj
			}
			return entries[i].user < entries[j].user
		})

		converted, err := l.convertSlice(ctx, groupID, code, target, entries)
		if err != nil {
			return nil, err
		}
		for i, e := range entries {
			k := key{e.user, target}
			v, ok := addInt64(out[k], converted[i])
			if !ok {
				return nil, fmt.Errorf("%w: %s %s", money.ErrOverflow, e.user, target)
			}
			out[k] = v
		}
	}
	return out, nil
}

func (l *Ledger) convertSlice(ctx context.Context, groupID string, code, target money.Code, entries []entry) ([]int64, error) {
	q, err := l.normalizer.Quote(ctx, code, target)
	if err != nil {
		return nil, err
	}

	converted := make([]int64, len(entries))
	var nativeSum, sum int64
	for i, e := range entries {
		m, err := q.Convert(e.net)
		if err != nil {
			return nil, err
		}
		converted[i] = m.MinorUnits
		nativeSum += e.net
		sum += m.MinorUnits
	}
	if nativeSum != 0 {
		return nil, l.fault(groupID, fmt.Errorf("%w: %s slice off by %d", calculator.ErrUnbalancedInput, code, nativeSum))
	}

	step := int64(1)
	if sum > 0 {
		step = -1
	}
	for i := 0; sum != 0; i = (i + 1) % len(converted) {
		converted[i] += step
		sum += step
	}
	return converted, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
