package timerange

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolveRange(t *testing.T) {
	// 10:00 UTC is 15:30 in UTC+05:30, same calendar day
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	r := NewResolver(nil, fixedClock(now))

	tests := []struct {
		token string
		want  time.Time
	}{
		{"1d", time.Date(2025, 3, 14, 0, 0, 0, 0, DefaultLocation)},
		{"7d", time.Date(2025, 3, 8, 0, 0, 0, 0, DefaultLocation)},
		{"30d", time.Date(2025, 2, 13, 0, 0, 0, 0, DefaultLocation)},
		{"3m", time.Date(2024, 12, 15, 0, 0, 0, 0, DefaultLocation)},
		{"6m", time.Date(2024, 9, 15, 0, 0, 0, 0, DefaultLocation)},
		{"1y", time.Date(2024, 3, 15, 0, 0, 0, 0, DefaultLocation)},
		{"", time.Date(2025, 3, 8, 0, 0, 0, 0, DefaultLocation)},
		{"2w", time.Date(2025, 3, 8, 0, 0, 0, 0, DefaultLocation)},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got := r.ResolveRange(tt.token)
			assert.True(t, tt.want.Equal(got), "ResolveRange(%q) = %v, want %v", tt.token, got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestResolveRangeUsesFixedOffsetForDayBoundary(t *testing.T) {
	// 20:00 UTC on the 15th is already 01:30 on the 16th in UTC+05:30
	now := time.Date(2025, 3, 15, 20, 0, 0, 0, time.UTC)

	ist := NewResolver(nil, fixedClock(now)).ResolveRange("7d")
	assert.Equal(t, time.Date(2025, 3, 8, 18, 30, 0, 0, time.UTC), ist)

	utc := NewResolver(time.UTC, fixedClock(now)).ResolveRange("7d")
	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), utc)
}

func TestResolveRangeClampsMonthEnd(t *testing.T) {
	now := time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC)
	r := NewResolver(time.UTC, fixedClock(now))

	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), r.ResolveRange("3m"))

	leap := NewResolver(time.UTC, fixedClock(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), leap.ResolveRange("1y"))
}

func TestResolve(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	r := NewResolver(nil, fixedClock(now))

	t.Run("explicit since wins over token", func(t *testing.T) {
		got, err := r.Resolve("1y", "2025-01-01T00:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("since with offset", func(t *testing.T) {
		got, err := r.Resolve("", "2025-01-01T05:30:00+05:30")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("date only since is read in the fixed zone", func(t *testing.T) {
		got, err := r.Resolve("", "2025-01-02")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 1, 18, 30, 0, 0, time.UTC), got)
	})

	t.Run("blank since falls back to token", func(t *testing.T) {
		got, err := r.Resolve("30d", "  ")
		require.NoError(t, err)
		assert.Equal(t, r.ResolveRange("30d"), got)
	})

	t.Run("invalid since", func(t *testing.T) {
		for _, since := range []string{"yesterday", "2025-13-01", "2025-01-01T25:00:00Z", "1700000000"} {
			_, err := r.Resolve("7d", since)
			require.Error(t, err, since)
			assert.True(t, errors.Is(err, ErrInvalidTimestamp), since)
		}
	})
}

func TestMonthWindow(t *testing.T) {
	now := time.Date(2025, 3, 15, 22, 0, 0, 0, time.UTC)
	r := NewResolver(nil, fixedClock(now))

	tests := []struct {
		token string
		want  time.Time
	}{
		{"30d", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"3m", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"6m", time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"1y", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"7d", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, r.MonthWindow(tt.token))
		})
	}
}

func TestParseUTCOffset(t *testing.T) {
	loc, err := ParseUTCOffset("+05:30")
	require.NoError(t, err)
	_, secs := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 19800, secs)

	loc, err = ParseUTCOffset("-03:00")
	require.NoError(t, err)
	_, secs = time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -10800, secs)

	for _, s := range []string{"", "Z", "utc", "+00:00"} {
		loc, err := ParseUTCOffset(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.UTC, loc, s)
	}

	for _, s := range []string{"IST", "5:30", "+0530x"} {
		_, err := ParseUTCOffset(s)
		assert.Error(t, err, s)
	}
}

func TestResolveRangeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("30d is the day start 30 calendar days before now", prop.ForAll(
		func(offsetMinutes int64) bool {
			now := base.Add(time.Duration(offsetMinutes) * time.Minute)
			got := NewResolver(nil, fixedClock(now)).ResolveRange("30d")

			local := now.In(DefaultLocation).AddDate(0, 0, -30)
			want := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, DefaultLocation)
			return got.Equal(want)
		},
		gen.Int64Range(0, 10*365*24*60),
	))

	properties.Property("result is a day start in the fixed zone and not after now", prop.ForAll(
		func(offsetMinutes int64, token string) bool {
			now := base.Add(time.Duration(offsetMinutes) * time.Minute)
			got := NewResolver(nil, fixedClock(now)).ResolveRange(token).In(DefaultLocation)
			return got.Hour() == 0 && got.Minute() == 0 && got.Second() == 0 && !got.After(now)
		},
		gen.Int64Range(0, 10*365*24*60),
		gen.OneConstOf("1d", "7d", "30d", "3m", "6m", "1y", "bogus"),
	))

	properties.TestingRun(t)
}
