// Package overlay combines several networks' USD series for side-by-side charts.
package overlay

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/validator-dashboard/internal/models"
	"github.com/validator-dashboard/internal/policy"
	"github.com/validator-dashboard/internal/types"
	"github.com/validator-dashboard/internal/valuation"
)

// Merge normalizes the selected delegation field of every network and returns
// one series per network. Networks excluded from overlays by policy and
// networks without snapshots are omitted. Series are not resampled; each keeps
// its own timestamps in input order.
func Merge(perNetwork map[string][]models.Snapshot, field types.DelegationField, registry *policy.Registry) map[string]types.NetworkSeries {
	out := make(map[string]types.NetworkSeries, len(perNetwork))

	for network, snapshots := range perNetwork {
		if len(snapshots) == 0 || registry.PolicyFor(network).ExcludedFromOverlay {
			continue
		}
		out[network] = types.NetworkSeries{
			Network: network,
			Label:   Label(network),
			Points:  valuation.NormalizeSeries(snapshots, field),
		}
	}

	return out
}

// MergeOrdered is Merge with the series sorted by network name
func MergeOrdered(perNetwork map[string][]models.Snapshot, field types.DelegationField, registry *policy.Registry) []types.NetworkSeries {
	merged := Merge(perNetwork, field, registry)

	series := make([]types.NetworkSeries, 0, len(merged))
	for _, s := range merged {
		series = append(series, s)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Network < series[j].Network
	})
	return series
}

// Label is the display name of a network: its name with the first letter
// upper-cased.
func Label(network string) string {
	if network == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(network)
	return string(unicode.ToUpper(r)) + network[size:]
}

// DisplayName renders a network selector entry; "all" and snake_case names
// get friendlier text.
func DisplayName(network string) string {
	if network == types.AllNetworks {
		return "All Networks"
	}
	words := strings.Split(network, "_")
	for i, w := range words {
		words[i] = Label(w)
	}
	return strings.Join(words, " ")
}
