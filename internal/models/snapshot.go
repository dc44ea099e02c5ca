// Package models provides data models for the validator dashboard.
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/validator-dashboard/internal/types"
)

// Snapshot is one recorded observation of a validator's economic state on a
// network. Amount columns are stored as free-form "<number> [unit...]" text.
type Snapshot struct {
	ID                  int64               `json:"id,omitempty" db:"id"`
	Network             string              `json:"network" db:"-"`
	ValidatorAddr       string              `json:"validator_addr,omitempty" db:"validator_addr"`
	SelfDelegations     string              `json:"self_delegations" db:"self_delegations"`
	ExternalDelegations string              `json:"external_delegations" db:"external_delegations"`
	Rewards             string              `json:"rewards" db:"rewards"`
	TotalRewards        string              `json:"total_rewards,omitempty" db:"total_rewards"`
	Price               decimal.NullDecimal `json:"price" db:"price"`
	Timestamp           time.Time           `json:"timestamp" db:"timestamp"`
}

// Delegation returns the raw amount for the selected delegation field
func (s *Snapshot) Delegation(field types.DelegationField) string {
	switch field {
	case types.FieldExternal:
		return s.ExternalDelegations
	default:
		return s.SelfDelegations
	}
}

// AggregateTotals is a row of the cross-network total_rewards table.
// All values are already USD denominated.
type AggregateTotals struct {
	TotalSelfDelegationsUSD     decimal.NullDecimal `json:"total_self_delegations_usd" db:"total_self_delegations_usd"`
	TotalExternalDelegationsUSD decimal.NullDecimal `json:"total_external_delegations_usd" db:"total_external_delegations_usd"`
	TotalRewardsUSD             decimal.NullDecimal `json:"total_rewards_usd" db:"total_rewards_usd"`
	Timestamp                   time.Time           `json:"timestamp" db:"timestamp"`
}

// ToSnapshot renders the aggregate as a snapshot of the "all" pseudo-network
// whose amounts carry the explicit USD marker.
func (a *AggregateTotals) ToSnapshot() Snapshot {
	return Snapshot{
		Network:             types.AllNetworks,
		SelfDelegations:     usdText(a.TotalSelfDelegationsUSD),
		ExternalDelegations: usdText(a.TotalExternalDelegationsUSD),
		Rewards:             usdText(a.TotalRewardsUSD),
		Timestamp:           a.Timestamp,
	}
}

func usdText(d decimal.NullDecimal) string {
	if !d.Valid {
		return "0"
	}
	return d.Decimal.String() + " USD"
}
