// Package policy holds the per-network aggregation rules of the dashboard.
package policy

import (
	"strings"

	"github.com/validator-dashboard/internal/types"
)

// NetworkPolicy describes how one network's snapshots are aggregated
type NetworkPolicy struct {
	Name string `json:"name"`
	// ExcludedFromOverlay keeps the network out of cross-network comparisons
	ExcludedFromOverlay bool                `json:"excludedFromOverlay"`
	MonthlyPolicy       types.MonthlyPolicy `json:"monthlyPolicy"`
	// HideMonthly disables the monthly rewards view for the network
	HideMonthly bool `json:"hideMonthly"`
}

// DefaultPolicy returns the policy applied to networks absent from a registry
func DefaultPolicy(name string) NetworkPolicy {
	return NetworkPolicy{
		Name:          strings.ToLower(name),
		MonthlyPolicy: types.PolicySnapshotDelta,
	}
}

// Registry is an immutable lookup table of network policies.
// It is safe for concurrent use.
type Registry struct {
	order    []string
	policies map[string]NetworkPolicy
}

// NewRegistry builds a registry from the given entries. Names are lowercased;
// a later entry for the same name replaces the earlier one but keeps its
// position. Entries without a monthly policy get PolicySnapshotDelta.
func NewRegistry(entries ...NetworkPolicy) *Registry {
	r := &Registry{
		order:    make([]string, 0, len(entries)),
		policies: make(map[string]NetworkPolicy, len(entries)),
	}

	for _, p := range entries {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Name == "" {
			continue
		}
		if p.MonthlyPolicy == "" {
			p.MonthlyPolicy = types.PolicySnapshotDelta
		}
		if _, exists := r.policies[p.Name]; !exists {
			r.order = append(r.order, p.Name)
		}
		r.policies[p.Name] = p
	}

	return r
}

// DefaultRegistry returns the table of networks the dashboard tracks.
//
// avail reports rewards per period rather than as a running counter. nomic's
// delegation figures are not comparable with the other networks and are kept
// out of overlays; nomic and namada have no monthly rewards view.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NetworkPolicy{Name: "cosmos"},
		NetworkPolicy{Name: "polygon"},
		NetworkPolicy{Name: "avail", MonthlyPolicy: types.PolicyPeriodSum},
		NetworkPolicy{Name: "ika"},
		NetworkPolicy{Name: "cheqd"},
		NetworkPolicy{Name: "stride"},
		NetworkPolicy{Name: "passage"},
		NetworkPolicy{Name: "mantra"},
		NetworkPolicy{Name: "namada", HideMonthly: true},
		NetworkPolicy{Name: "osmosis"},
		NetworkPolicy{Name: "agoric"},
		NetworkPolicy{Name: "nomic", ExcludedFromOverlay: true, HideMonthly: true},
		NetworkPolicy{Name: "regen"},
		NetworkPolicy{Name: "akash"},
	)
}

// PolicyFor returns the policy of a network, or DefaultPolicy when unknown
func (r *Registry) PolicyFor(network string) NetworkPolicy {
	name := strings.ToLower(network)
	if p, ok := r.policies[name]; ok {
		return p
	}
	return DefaultPolicy(name)
}

// Known reports whether the network has an entry in the registry
func (r *Registry) Known(network string) bool {
	_, ok := r.policies[strings.ToLower(network)]
	return ok
}

// Networks returns the registered network names in registration order
func (r *Registry) Networks() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Subset returns a registry restricted to the named networks, in the order of
// the receiver. Unknown names are ignored; an empty list returns the receiver.
func (r *Registry) Subset(names []string) *Registry {
	if len(names) == 0 {
		return r
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var entries []NetworkPolicy
	for _, name := range r.order {
		if wanted[name] {
			entries = append(entries, r.policies[name])
		}
	}
	return NewRegistry(entries...)
}
