package valuation

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/validator-dashboard/internal/models"
	"github.com/validator-dashboard/internal/types"
)

// ToUSD converts a raw amount into USD.
//
// Amounts marked "USD" are returned as-is and the price is ignored. Otherwise
// a missing, zero or negative price means the amount cannot be valued and the
// result is 0.
func ToUSD(raw interface{}, price decimal.NullDecimal) float64 {
	parsed := Parse(raw)
	if parsed.IsExplicitUSD {
		return parsed.Magnitude
	}

	if !price.Valid || price.Decimal.Sign() <= 0 {
		return 0
	}

	p, _ := price.Decimal.Float64()
	if !isFinite(p) {
		return 0
	}
	return parsed.Magnitude * p
}

// ToUSDFromString is ToUSD for callers holding the price as text.
// Empty or unparseable prices value the amount at 0.
func ToUSDFromString(raw interface{}, price string) float64 {
	return ToUSD(raw, ParsePrice(price))
}

// ParsePrice reads a textual price; invalid text yields an invalid NullDecimal
func ParsePrice(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// NormalizeSeries values one delegation field of every snapshot in USD,
// preserving input order.
func NormalizeSeries(snapshots []models.Snapshot, field types.DelegationField) []types.NormalizedPoint {
	points := make([]types.NormalizedPoint, 0, len(snapshots))
	for i := range snapshots {
		s := &snapshots[i]
		points = append(points, types.NormalizedPoint{
			Timestamp: s.Timestamp,
			USDValue:  ToUSD(s.Delegation(field), s.Price),
		})
	}
	return points
}
