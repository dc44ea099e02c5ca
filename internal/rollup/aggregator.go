// Package rollup aggregates one network's reward snapshots into calendar-month
// buckets.
package rollup

import (
	"sort"
	"strings"

	"github.com/validator-dashboard/internal/models"
	"github.com/validator-dashboard/internal/policy"
	"github.com/validator-dashboard/internal/types"
	"github.com/validator-dashboard/internal/valuation"
)

// monthKeyLayout formats a UTC calendar month as YYYY-MM
const monthKeyLayout = "2006-01"

// MonthlyRollup is the result of rolling up one network's snapshots
type MonthlyRollup struct {
	Network     string                `json:"network"`
	Policy      types.MonthlyPolicy   `json:"policy"`
	TokenSymbol string                `json:"tokenSymbol,omitempty"`
	Label       string                `json:"label"`
	Buckets     []types.MonthlyBucket `json:"buckets"`
	// Hidden is set when the network offers no monthly view
	Hidden bool `json:"hidden,omitempty"`
}

// month is one group of snapshots sharing a UTC calendar month
type month struct {
	key     string
	rewards []float64
}

// Rollup groups snapshots by UTC calendar month and computes one reward value
// per month according to the network policy.
//
// Snapshots must be ordered by timestamp ascending. Snapshots without a
// reward counter are ignored. Under PolicySnapshotDelta the value of a month
// is its last reading minus the last reading of the previous month present in
// the input (or its own first reading for the first month). Under
// PolicyPeriodSum it is the sum of the month's readings. Values are floored
// at zero.
func Rollup(snapshots []models.Snapshot, p policy.NetworkPolicy) []types.MonthlyBucket {
	months, symbol := groupByMonth(snapshots)
	if len(months) == 0 {
		return []types.MonthlyBucket{}
	}

	buckets := make([]types.MonthlyBucket, 0, len(months))
	for i, m := range months {
		var value float64

		switch p.MonthlyPolicy {
		case types.PolicyPeriodSum:
			for _, r := range m.rewards {
				value += r
			}
		default:
			reference := m.rewards[0]
			if i > 0 {
				prev := months[i-1].rewards
				reference = prev[len(prev)-1]
			}
			value = m.rewards[len(m.rewards)-1] - reference
		}

		if value < 0 {
			value = 0
		}

		buckets = append(buckets, types.MonthlyBucket{
			MonthKey:    m.key,
			Value:       value,
			TokenSymbol: symbol,
		})
	}

	return buckets
}

// Build wraps Rollup with the metadata a monthly chart needs
func Build(network string, snapshots []models.Snapshot, p policy.NetworkPolicy) MonthlyRollup {
	buckets := Rollup(snapshots, p)

	symbol := ""
	if len(buckets) > 0 {
		symbol = buckets[0].TokenSymbol
	}

	return MonthlyRollup{
		Network:     network,
		Policy:      p.MonthlyPolicy,
		TokenSymbol: symbol,
		Label:       Label(p.MonthlyPolicy, symbol),
		Buckets:     buckets,
	}
}

// Hidden returns the empty rollup served for networks without a monthly view
func Hidden(network string, p policy.NetworkPolicy) MonthlyRollup {
	return MonthlyRollup{
		Network: network,
		Policy:  p.MonthlyPolicy,
		Label:   Label(p.MonthlyPolicy, ""),
		Buckets: []types.MonthlyBucket{},
		Hidden:  true,
	}
}

// Label is the chart legend for a monthly rollup
func Label(mp types.MonthlyPolicy, symbol string) string {
	kind := "(Delta)"
	if mp == types.PolicyPeriodSum {
		kind = "(Cumulative)"
	}
	return strings.TrimSpace("Monthly Rewards " + kind + " " + symbol)
}

// groupByMonth buckets reward readings by UTC month in order of first
// appearance and picks the token symbol from the first reading that has one.
func groupByMonth(snapshots []models.Snapshot) ([]month, string) {
	var (
		months []month
		index  = make(map[string]int)
		symbol string
	)

	for i := range snapshots {
		raw := snapshots[i].TotalRewards
		if strings.TrimSpace(raw) == "" {
			continue
		}

		parsed := valuation.ParseGrouped(raw)
		if symbol == "" && parsed.HasUnit() {
			symbol = parsed.UnitLabel
		}

		key := snapshots[i].Timestamp.UTC().Format(monthKeyLayout)
		pos, ok := index[key]
		if !ok {
			pos = len(months)
			index[key] = pos
			months = append(months, month{key: key})
		}
		months[pos].rewards = append(months[pos].rewards, parsed.Magnitude)
	}

	sort.SliceStable(months, func(i, j int) bool {
		return months[i].key < months[j].key
	})
	return months, symbol
}
