package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/validator-dashboard/internal/types"
)

func TestSnapshotDelegation(t *testing.T) {
	s := Snapshot{SelfDelegations: "10 ATOM", ExternalDelegations: "20 ATOM"}

	assert.Equal(t, "10 ATOM", s.Delegation(types.FieldSelf))
	assert.Equal(t, "20 ATOM", s.Delegation(types.FieldExternal))
	assert.Equal(t, "10 ATOM", s.Delegation(""))
}

func TestAggregateTotalsToSnapshot(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	agg := AggregateTotals{
		TotalSelfDelegationsUSD:     decimal.NewNullDecimal(decimal.RequireFromString("1500.25")),
		TotalExternalDelegationsUSD: decimal.NullDecimal{},
		TotalRewardsUSD:             decimal.NewNullDecimal(decimal.Zero),
		Timestamp:                   ts,
	}

	s := agg.ToSnapshot()

	assert.Equal(t, types.AllNetworks, s.Network)
	assert.Equal(t, "1500.25 USD", s.SelfDelegations)
	assert.Equal(t, "0", s.ExternalDelegations)
	assert.Equal(t, "0 USD", s.Rewards)
	assert.Equal(t, ts, s.Timestamp)
}
