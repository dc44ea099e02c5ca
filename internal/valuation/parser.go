// Package valuation turns loosely typed "amount [unit...]" values into numbers
// and USD values.
//
// Every function here is lenient: malformed input resolves to zero instead of
// an error so that a single bad snapshot row never blocks a whole chart.
package valuation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/validator-dashboard/internal/types"
)

// usdMarker is the unit token that flags an amount as already USD denominated
const usdMarker = "USD"

// Parse extracts the magnitude and unit label from a raw amount.
//
// Supported inputs are nil, strings (and *string), Go numeric kinds,
// decimal.Decimal and json.Number. Anything else, or any amount that does not
// parse as a finite number, yields a zero magnitude.
func Parse(raw interface{}) types.ParsedAmount {
	switch v := raw.(type) {
	case nil:
		return types.ParsedAmount{}
	case string:
		return parseString(v)
	case *string:
		if v == nil {
			return types.ParsedAmount{}
		}
		return parseString(*v)
	case json.Number:
		return parseString(string(v))
	case decimal.Decimal:
		f, _ := v.Float64()
		return fromFloat(f)
	case decimal.NullDecimal:
		if !v.Valid {
			return types.ParsedAmount{}
		}
		f, _ := v.Decimal.Float64()
		return fromFloat(f)
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return fromFloat(float64(v))
	case int8:
		return fromFloat(float64(v))
	case int16:
		return fromFloat(float64(v))
	case int32:
		return fromFloat(float64(v))
	case int64:
		return fromFloat(float64(v))
	case uint:
		return fromFloat(float64(v))
	case uint8:
		return fromFloat(float64(v))
	case uint16:
		return fromFloat(float64(v))
	case uint32:
		return fromFloat(float64(v))
	case uint64:
		return fromFloat(float64(v))
	default:
		return types.ParsedAmount{}
	}
}

// ParseGrouped parses a raw amount whose number may carry "," thousands
// separators, e.g. "1,234.5 ATOM". Reward counters are reported this way by
// some collectors.
func ParseGrouped(raw string) types.ParsedAmount {
	return parseString(strings.ReplaceAll(raw, ",", ""))
}

// Magnitude is shorthand for Parse(raw).Magnitude
func Magnitude(raw interface{}) float64 {
	return Parse(raw).Magnitude
}

func parseString(raw string) types.ParsedAmount {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return types.ParsedAmount{}
	}

	parsed := types.ParsedAmount{
		Magnitude: parseNumber(tokens[0]),
	}

	units := tokens[1:]
	if len(units) > 0 {
		parsed.UnitLabel = units[0]
	}
	for _, unit := range units {
		if strings.EqualFold(unit, usdMarker) {
			parsed.IsExplicitUSD = true
			break
		}
	}

	return parsed
}

// parseNumber returns the finite decimal value of s, or 0. Go-only literal
// forms (hex floats, digit separators) are not amounts.
func parseNumber(s string) float64 {
	digits := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") || strings.Contains(digits, "_") {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return 0
	}
	return f
}

func fromFloat(f float64) types.ParsedAmount {
	if !isFinite(f) {
		return types.ParsedAmount{}
	}
	return types.ParsedAmount{Magnitude: f}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
