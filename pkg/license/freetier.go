package license

import "context"

// FreeTierManager serves installations without a token. The state is
// FreeTier and terminal; entitlements are the free-tier limits unless
// overridden. It satisfies the same Manager interface as LicensedManager so
// the rest of the runtime never branches on licensing mode.
type FreeTierManager struct {
	view view
}

// newFreeTierManager applies overrides on top of the free-tier defaults.
func newFreeTierManager(opts Options) *FreeTierManager {
	v := view{
		state:  StateFreeTier,
		tier:   TierFree,
		limits: opts.FreeTier,
	}

	opts.Overrides.apply(&v)

	return &FreeTierManager{view: v}
}

// CurrentState implements Manager.
func (m *FreeTierManager) CurrentState() State { return m.view.state }

// CurrentTier implements Manager.
func (m *FreeTierManager) CurrentTier() Tier { return m.view.tier }

// MaxSlots implements Manager.
func (m *FreeTierManager) MaxSlots() int { return m.view.limits.MaxSlots }

// MaxWorkUnitsPerMinute implements Manager.
func (m *FreeTierManager) MaxWorkUnitsPerMinute() int {
	return m.view.limits.MaxWorkUnitsPerMinute
}

// MaxNodes implements Manager.
func (m *FreeTierManager) MaxNodes() int { return m.view.limits.MaxNodes }

// HasFeature implements Manager. Free tier enables no features unless
// overridden.
func (m *FreeTierManager) HasFeature(id string) bool {
	return featureEnabled(m.view.features, id)
}

// MeetsTierRequirement implements Manager.
func (m *FreeTierManager) MeetsTierRequirement(req Tier) bool {
	return m.view.tier.AtLeast(req)
}

// Revalidate implements Manager. FreeTier is terminal; nothing to derive.
func (m *FreeTierManager) Revalidate() {}

// ValidateAsync implements Manager.
func (m *FreeTierManager) ValidateAsync(context.Context) {}

// Snapshot implements Manager.
func (m *FreeTierManager) Snapshot() Snapshot {
	return Snapshot{
		State:    m.view.state,
		Tier:     m.view.tier,
		Features: m.view.features,
		Limits:   m.view.limits,
	}
}
