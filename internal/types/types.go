// Package types provides common type definitions for the validator dashboard.
package types

import "time"

// MonthlyPolicy selects how a network's reward counter is rolled up per month
type MonthlyPolicy string

const (
	// PolicySnapshotDelta treats the reward field as a running counter; the
	// monthly value is the difference between consecutive month-end readings
	PolicySnapshotDelta MonthlyPolicy = "snapshot_delta"
	// PolicyPeriodSum treats every snapshot as an independent period total;
	// the monthly value is the sum of the month's readings
	PolicyPeriodSum MonthlyPolicy = "period_sum"
)

// DelegationField selects which delegation column feeds an overlay series
type DelegationField string

const (
	// FieldSelf selects self_delegations
	FieldSelf DelegationField = "self"
	// FieldExternal selects external_delegations
	FieldExternal DelegationField = "external"
)

// ParseDelegationField maps a query value to a DelegationField
func ParseDelegationField(s string) (DelegationField, bool) {
	switch DelegationField(s) {
	case FieldSelf:
		return FieldSelf, true
	case FieldExternal:
		return FieldExternal, true
	default:
		return "", false
	}
}

// AllNetworks is the pseudo-network that addresses the cross-network aggregate
const AllNetworks = "all"

// ParsedAmount is the numeric view of a raw "amount [unit...]" value
type ParsedAmount struct {
	Magnitude     float64 `json:"magnitude"`
	UnitLabel     string  `json:"unitLabel,omitempty"` // First token after the amount, if any
	IsExplicitUSD bool    `json:"isExplicitUsd"`
}

// HasUnit reports whether a unit token followed the amount
func (p ParsedAmount) HasUnit() bool {
	return p.UnitLabel != ""
}

// NormalizedPoint is one USD-valued observation
type NormalizedPoint struct {
	Timestamp time.Time `json:"timestamp"`
	USDValue  float64   `json:"usdValue"`
}

// MonthlyBucket is the rolled-up reward value of one UTC calendar month
type MonthlyBucket struct {
	MonthKey    string  `json:"monthKey"` // YYYY-MM
	Value       float64 `json:"value"`
	TokenSymbol string  `json:"tokenSymbol,omitempty"`
}

// NetworkSeries is one network's normalized series for overlay charts
type NetworkSeries struct {
	Network string            `json:"network"`
	Label   string            `json:"label"`
	Points  []NormalizedPoint `json:"points"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
