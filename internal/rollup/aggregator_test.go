package rollup

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/validator-dashboard/internal/models"
	"github.com/validator-dashboard/internal/policy"
	"github.com/validator-dashboard/internal/types"
)

var (
	deltaPolicy = policy.NetworkPolicy{Name: "cosmos", MonthlyPolicy: types.PolicySnapshotDelta}
	sumPolicy   = policy.NetworkPolicy{Name: "avail", MonthlyPolicy: types.PolicyPeriodSum}
)

func snap(ts string, totalRewards string) models.Snapshot {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return models.Snapshot{Timestamp: t, TotalRewards: totalRewards}
}

func TestRollupSnapshotDelta(t *testing.T) {
	t.Run("first month baselines against itself", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-05T00:00:00Z", "100 ATOM"),
			snap("2025-02-10T00:00:00Z", "150 ATOM"),
		}, deltaPolicy)

		assert.Equal(t, []types.MonthlyBucket{
			{MonthKey: "2025-01", Value: 0, TokenSymbol: "ATOM"},
			{MonthKey: "2025-02", Value: 50, TokenSymbol: "ATOM"},
		}, buckets)
	})

	t.Run("first month grows from its first reading", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-01T00:00:00Z", "100 ATOM"),
			snap("2025-01-15T00:00:00Z", "120 ATOM"),
			snap("2025-01-31T00:00:00Z", "130 ATOM"),
			snap("2025-02-15T00:00:00Z", "160 ATOM"),
			snap("2025-02-28T00:00:00Z", "175 ATOM"),
		}, deltaPolicy)

		require.Len(t, buckets, 2)
		assert.Equal(t, 30.0, buckets[0].Value)
		assert.Equal(t, 45.0, buckets[1].Value)
	})

	t.Run("counter reset is floored at zero", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-31T00:00:00Z", "200 ATOM"),
			snap("2025-02-28T00:00:00Z", "50 ATOM"),
		}, deltaPolicy)

		require.Len(t, buckets, 2)
		assert.Equal(t, 0.0, buckets[1].Value)
	})

	t.Run("gap months compare with the previous month present", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-31T00:00:00Z", "100 ATOM"),
			snap("2025-04-30T00:00:00Z", "400 ATOM"),
		}, deltaPolicy)

		require.Len(t, buckets, 2)
		assert.Equal(t, "2025-04", buckets[1].MonthKey)
		assert.Equal(t, 300.0, buckets[1].Value)
	})

	t.Run("single snapshot yields zero", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{snap("2025-03-01T00:00:00Z", "42 ATOM")}, deltaPolicy)
		assert.Equal(t, []types.MonthlyBucket{{MonthKey: "2025-03", Value: 0, TokenSymbol: "ATOM"}}, buckets)
	})

	t.Run("grouped digits are read", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-31T00:00:00Z", "1,000 ATOM"),
			snap("2025-02-28T00:00:00Z", "1,250.5 ATOM"),
		}, deltaPolicy)

		require.Len(t, buckets, 2)
		assert.Equal(t, 250.5, buckets[1].Value)
	})
}

func TestRollupPeriodSum(t *testing.T) {
	t.Run("sums the month's readings", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-01T00:00:00Z", "10 AVAIL"),
			snap("2025-01-02T00:00:00Z", "20 AVAIL"),
			snap("2025-01-03T00:00:00Z", "30 AVAIL"),
			snap("2025-02-01T00:00:00Z", "5 AVAIL"),
		}, sumPolicy)

		assert.Equal(t, []types.MonthlyBucket{
			{MonthKey: "2025-01", Value: 60, TokenSymbol: "AVAIL"},
			{MonthKey: "2025-02", Value: 5, TokenSymbol: "AVAIL"},
		}, buckets)
	})

	t.Run("single snapshot yields its reading", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{snap("2025-03-01T00:00:00Z", "7 AVAIL")}, sumPolicy)
		require.Len(t, buckets, 1)
		assert.Equal(t, 7.0, buckets[0].Value)
	})

	t.Run("negative total is floored at zero", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-03-01T00:00:00Z", "-10 AVAIL"),
			snap("2025-03-02T00:00:00Z", "4 AVAIL"),
		}, sumPolicy)
		require.Len(t, buckets, 1)
		assert.Equal(t, 0.0, buckets[0].Value)
	})
}

func TestRollupGrouping(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Rollup(nil, deltaPolicy))
		assert.NotNil(t, Rollup(nil, deltaPolicy))
	})

	t.Run("months are UTC calendar months", func(t *testing.T) {
		// 2025-01-31T20:00-05:00 is already February in UTC
		ts, err := time.Parse(time.RFC3339, "2025-01-31T20:00:00-05:00")
		require.NoError(t, err)

		buckets := Rollup([]models.Snapshot{{Timestamp: ts, TotalRewards: "1 ATOM"}}, sumPolicy)
		require.Len(t, buckets, 1)
		assert.Equal(t, "2025-02", buckets[0].MonthKey)
	})

	t.Run("rows without a reward counter are skipped", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-01T00:00:00Z", ""),
			snap("2025-02-01T00:00:00Z", "   "),
			snap("2025-03-01T00:00:00Z", "3 AVAIL"),
		}, sumPolicy)

		assert.Equal(t, []types.MonthlyBucket{{MonthKey: "2025-03", Value: 3, TokenSymbol: "AVAIL"}}, buckets)
	})

	t.Run("token symbol comes from the first reading with a unit", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-01T00:00:00Z", "10"),
			snap("2025-01-02T00:00:00Z", "12 NAM"),
			snap("2025-02-02T00:00:00Z", "15 OTHER"),
		}, deltaPolicy)

		require.Len(t, buckets, 2)
		for _, b := range buckets {
			assert.Equal(t, "NAM", b.TokenSymbol)
		}
	})

	t.Run("no unit anywhere leaves symbol empty", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{snap("2025-01-01T00:00:00Z", "10")}, deltaPolicy)
		require.Len(t, buckets, 1)
		assert.Empty(t, buckets[0].TokenSymbol)
	})

	t.Run("malformed reading counts as zero", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-01-31T00:00:00Z", "100 ATOM"),
			snap("2025-02-28T00:00:00Z", "oops ATOM"),
			snap("2025-03-31T00:00:00Z", "130 ATOM"),
		}, deltaPolicy)

		require.Len(t, buckets, 3)
		assert.Equal(t, 0.0, buckets[1].Value)
		assert.Equal(t, 130.0, buckets[2].Value)
	})

	t.Run("buckets ascend by month key", func(t *testing.T) {
		buckets := Rollup([]models.Snapshot{
			snap("2025-03-01T00:00:00Z", "3 AVAIL"),
			snap("2025-01-01T00:00:00Z", "1 AVAIL"),
		}, sumPolicy)

		require.Len(t, buckets, 2)
		assert.Equal(t, "2025-01", buckets[0].MonthKey)
		assert.Equal(t, "2025-03", buckets[1].MonthKey)
	})
}

func TestBuild(t *testing.T) {
	snapshots := []models.Snapshot{
		snap("2025-01-31T00:00:00Z", "100 ATOM"),
		snap("2025-02-28T00:00:00Z", "150 ATOM"),
	}

	r := Build("cosmos", snapshots, deltaPolicy)
	assert.Equal(t, "cosmos", r.Network)
	assert.Equal(t, types.PolicySnapshotDelta, r.Policy)
	assert.Equal(t, "ATOM", r.TokenSymbol)
	assert.Equal(t, "Monthly Rewards (Delta) ATOM", r.Label)
	assert.Len(t, r.Buckets, 2)
	assert.False(t, r.Hidden)

	empty := Build("avail", nil, sumPolicy)
	assert.Equal(t, "Monthly Rewards (Cumulative)", empty.Label)
	assert.Empty(t, empty.Buckets)
}

func TestHidden(t *testing.T) {
	r := Hidden("nomic", deltaPolicy)
	assert.True(t, r.Hidden)
	assert.NotNil(t, r.Buckets)
	assert.Empty(t, r.Buckets)
}

// genSeries produces an ascending daily series of cumulative-looking readings
func genSeries() gopter.Gen {
	return gen.SliceOf(gen.Float64Range(-1000, 100000)).Map(func(values []float64) []models.Snapshot {
		start := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
		out := make([]models.Snapshot, len(values))
		for i, v := range values {
			out[i] = models.Snapshot{
				Timestamp:    start.Add(time.Duration(i) * 36 * time.Hour),
				TotalRewards: fmt.Sprintf("%g ATOM", v),
			}
		}
		return out
	})
}

func TestRollupProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	policies := gen.OneConstOf(types.PolicySnapshotDelta, types.PolicyPeriodSum)

	properties.Property("bucket values are never negative", prop.ForAll(
		func(series []models.Snapshot, mp types.MonthlyPolicy) bool {
			for _, b := range Rollup(series, policy.NetworkPolicy{MonthlyPolicy: mp}) {
				if b.Value < 0 {
					return false
				}
			}
			return true
		},
		genSeries(),
		policies,
	))

	properties.Property("rollup is deterministic and leaves input untouched", prop.ForAll(
		func(series []models.Snapshot, mp types.MonthlyPolicy) bool {
			before := make([]models.Snapshot, len(series))
			copy(before, series)

			p := policy.NetworkPolicy{MonthlyPolicy: mp}
			first := Rollup(series, p)
			second := Rollup(series, p)

			return assert.ObjectsAreEqual(first, second) && assert.ObjectsAreEqual(before, series)
		},
		genSeries(),
		policies,
	))

	properties.Property("one bucket per distinct month in ascending order", prop.ForAll(
		func(series []models.Snapshot) bool {
			months := map[string]bool{}
			for _, s := range series {
				months[s.Timestamp.UTC().Format("2006-01")] = true
			}
			buckets := Rollup(series, deltaPolicy)
			if len(buckets) != len(months) {
				return false
			}
			for i := 1; i < len(buckets); i++ {
				if buckets[i-1].MonthKey >= buckets[i].MonthKey {
					return false
				}
			}
			return true
		},
		genSeries(),
	))

	properties.TestingRun(t)
}
