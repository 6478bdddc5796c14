package license

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/axonworks/axon/pkg/adapters"
)

// Defaults for the manager options.
const (
	// DefaultGracePeriod is how long past expiry a token still grants its
	// entitlements (state InGrace).
	DefaultGracePeriod = 5 * time.Minute

	// DefaultClockSkew is the tolerance applied to issuedAt ≤ now.
	DefaultClockSkew = 5 * time.Minute

	// DefaultRevalidateInterval is the cadence of ValidateAsync.
	DefaultRevalidateInterval = time.Minute
)

// Free-tier entitlements served when no token is configured or a token's
// grace has elapsed.
const (
	FreeTierMaxSlots              = 10
	FreeTierMaxWorkUnitsPerMinute = 1000
	FreeTierMaxNodes              = 3
)

// FreeTierLimits returns the default free-tier limits.
func FreeTierLimits() Limits {
	return Limits{
		MaxSlots:              FreeTierMaxSlots,
		MaxWorkUnitsPerMinute: FreeTierMaxWorkUnitsPerMinute,
		MaxNodes:              FreeTierMaxNodes,
	}
}

// Manager answers the entitlement questions the gate and the coordinator
// ask on every admission. Implementations are safe for concurrent use and
// readers never block.
type Manager interface {
	CurrentState() State
	CurrentTier() Tier
	MaxSlots() int
	MaxWorkUnitsPerMinute() int
	MaxNodes() int

	// HasFeature reports whether id matches an enabled feature. Enabled
	// features support a trailing wildcard: "documents.*" matches
	// "documents.convert".
	HasFeature(id string) bool

	// MeetsTierRequirement compares the current tier against req over the
	// lattice free < starter < professional < enterprise.
	MeetsTierRequirement(req Tier) bool

	// Revalidate re-derives the state from the clock. Transitions invoke
	// the OnStateChange callback synchronously.
	Revalidate()

	// ValidateAsync revalidates at DefaultRevalidateInterval until ctx is
	// canceled.
	ValidateAsync(ctx context.Context)

	// Snapshot returns a copy of the current entitlements for rendering.
	Snapshot() Snapshot
}

// Snapshot is an immutable copy of the manager's current view.
type Snapshot struct {
	State     State     `json:"state"`
	Tier      Tier      `json:"tier"`
	LicenseID string    `json:"licenseId,omitempty"`
	IssuedTo  string    `json:"issuedTo,omitempty"`
	Expiry    time.Time `json:"expiry,omitempty"`
	Features  []string  `json:"features,omitempty"`
	Limits    Limits    `json:"limits"`
}

// Overrides are trusted in-process entitlement replacements. A non-nil
// field replaces the corresponding token value; Expiry replaces the token
// expiry outright.
type Overrides struct {
	MaxSlots              *int
	MaxWorkUnitsPerMinute *int
	MaxNodes              *int
	Tier                  *Tier
	Features              []string
	Expiry                *time.Time
}

// apply rewrites v in place.
func (o Overrides) apply(v *view) {
	if o.MaxSlots != nil {
		v.limits.MaxSlots = *o.MaxSlots
	}

	if o.MaxWorkUnitsPerMinute != nil {
		v.limits.MaxWorkUnitsPerMinute = *o.MaxWorkUnitsPerMinute
	}

	if o.MaxNodes != nil {
		v.limits.MaxNodes = *o.MaxNodes
	}

	if o.Tier != nil {
		v.tier = *o.Tier
	}

	if o.Features != nil {
		v.features = slices.Clone(o.Features)
	}
}

// Options configures NewManager.
type Options struct {
	// TokenJSON is the signed envelope. Nil selects the free-tier manager.
	TokenJSON []byte

	// VendorKey verifies the token signature. Required when TokenJSON is
	// set.
	VendorKey ed25519.PublicKey

	Overrides Overrides

	// GracePeriod defaults to DefaultGracePeriod; negative means none.
	GracePeriod time.Duration

	// ClockSkew defaults to DefaultClockSkew.
	ClockSkew time.Duration

	// RevokedIDs lists license IDs that must be refused outright.
	RevokedIDs []string

	// FreeTier replaces the default free-tier limits when non-zero.
	FreeTier Limits

	// Validator, when set, runs after signature verification and can
	// reject a structurally valid token (state Invalid).
	Validator func(Token) error

	// OnStateChange observes every state transition.
	OnStateChange func(old, new State)

	Clock  adapters.Clock
	Logger *slog.Logger
}

// withDefaults fills the zero-valued options.
func (o Options) withDefaults() Options {
	if o.GracePeriod == 0 {
		o.GracePeriod = DefaultGracePeriod
	}

	if o.GracePeriod < 0 {
		o.GracePeriod = 0
	}

	if o.ClockSkew == 0 {
		o.ClockSkew = DefaultClockSkew
	}

	if o.FreeTier == (Limits{}) {
		o.FreeTier = FreeTierLimits()
	}

	if o.Clock == nil {
		o.Clock = adapters.SystemClock{}
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// view is the copy-on-write entitlement snapshot readers load atomically.
type view struct {
	state     State
	tier      Tier
	features  []string
	limits    Limits
	expiry    time.Time
	licenseID string
	issuedTo  string
}

// NewManager builds the manager matching the options: token-backed when
// TokenJSON is set, free-tier otherwise. A malformed or unverifiable token
// does not fail construction; it yields a manager in state Invalid so the
// transition stays observable. Only a missing or malformed vendor key is a
// construction error.
func NewManager(opts Options) (Manager, error) {
	opts = opts.withDefaults()

	if len(opts.TokenJSON) == 0 {
		return newFreeTierManager(opts), nil
	}

	if len(opts.VendorKey) != ed25519.PublicKeySize {
		return nil, ErrVendorKey
	}

	m := &LicensedManager{opts: opts}

	tok, err := Parse(opts.TokenJSON, opts.VendorKey)
	if err != nil {
		opts.Logger.Warn("license token rejected", "error", err)

		m.invalid = true
	} else {
		m.token = tok
	}

	initial := m.derive(opts.Clock.Now())
	m.view.Store(&initial)

	return m, nil
}

// LicensedManager derives entitlements from a signed token. State is
// recomputed on Revalidate; readers load an immutable view.
type LicensedManager struct {
	opts    Options
	token   Token
	invalid bool
	view    atomic.Pointer[view]
}

// derive computes the view for the given instant.
func (m *LicensedManager) derive(now time.Time) view {
	if m.invalid {
		return view{state: StateInvalid}
	}

	if slices.Contains(m.opts.RevokedIDs, m.token.LicenseID) {
		return view{state: StateRevoked, licenseID: m.token.LicenseID}
	}

	if m.opts.Validator != nil {
		if err := m.opts.Validator(m.token); err != nil {
			m.opts.Logger.Warn("license validator rejected token",
				"license_id", m.token.LicenseID,
				"error", err)

			return view{state: StateInvalid, licenseID: m.token.LicenseID}
		}
	}

	if m.token.IssuedAt.After(now.Add(m.opts.ClockSkew)) {
		m.opts.Logger.Warn("license issued in the future",
			"license_id", m.token.LicenseID,
			"issued_at", m.token.IssuedAt)

		return view{state: StateInvalid, licenseID: m.token.LicenseID}
	}

	expiry := m.token.Expiry
	if m.opts.Overrides.Expiry != nil {
		expiry = *m.opts.Overrides.Expiry
	}

	state := m.expiryState(now, expiry)

	v := view{
		state:     state,
		expiry:    expiry,
		licenseID: m.token.LicenseID,
		issuedTo:  m.token.IssuedTo,
	}

	if state.Entitled() {
		v.tier = m.token.Tier
		v.features = slices.Clone(m.token.Features)
		v.limits = m.token.Limits
	} else {
		v.tier = TierFree
		v.limits = m.opts.FreeTier
	}

	m.opts.Overrides.apply(&v)

	return v
}

// expiryState places now on the expiry timeline.
func (m *LicensedManager) expiryState(now, expiry time.Time) State {
	remaining := expiry.Sub(now)

	switch {
	case remaining > m.opts.GracePeriod:
		return StateValid
	case remaining > 0:
		return StateExpiringSoon
	case m.opts.GracePeriod > 0 && now.Sub(expiry) <= m.opts.GracePeriod:
		return StateInGrace
	case m.opts.GracePeriod == 0:
		return StateExpired
	default:
		return StateUnlicensed
	}
}

// Revalidate implements Manager.
func (m *LicensedManager) Revalidate() {
	next := m.derive(m.opts.Clock.Now())
	old := m.view.Swap(&next)

	if old.state == next.state {
		return
	}

	m.opts.Logger.Info("license state changed",
		"from", old.state.String(),
		"to", next.state.String(),
		"license_id", next.licenseID)

	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(old.state, next.state)
	}
}

// ValidateAsync implements Manager.
func (m *LicensedManager) ValidateAsync(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(DefaultRevalidateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Revalidate()
			}
		}
	}()
}

// CurrentState implements Manager.
func (m *LicensedManager) CurrentState() State { return m.view.Load().state }

// CurrentTier implements Manager.
func (m *LicensedManager) CurrentTier() Tier { return m.view.Load().tier }

// MaxSlots implements Manager.
func (m *LicensedManager) MaxSlots() int { return m.view.Load().limits.MaxSlots }

// MaxWorkUnitsPerMinute implements Manager.
func (m *LicensedManager) MaxWorkUnitsPerMinute() int {
	return m.view.Load().limits.MaxWorkUnitsPerMinute
}

// MaxNodes implements Manager.
func (m *LicensedManager) MaxNodes() int { return m.view.Load().limits.MaxNodes }

// HasFeature implements Manager.
func (m *LicensedManager) HasFeature(id string) bool {
	return featureEnabled(m.view.Load().features, id)
}

// MeetsTierRequirement implements Manager.
func (m *LicensedManager) MeetsTierRequirement(req Tier) bool {
	v := m.view.Load()
	if v.state.Fatal() {
		return false
	}

	return v.tier.AtLeast(req)
}

// Snapshot implements Manager.
func (m *LicensedManager) Snapshot() Snapshot {
	v := m.view.Load()

	return Snapshot{
		State:     v.state,
		Tier:      v.tier,
		LicenseID: v.licenseID,
		IssuedTo:  v.issuedTo,
		Expiry:    v.expiry,
		Features:  slices.Clone(v.features),
		Limits:    v.limits,
	}
}

// featureEnabled matches id against the enabled patterns. A pattern ending
// in "*" matches by prefix, so "documents.*" covers "documents.convert" and
// a lone "*" covers everything.
func featureEnabled(enabled []string, id string) bool {
	for _, pattern := range enabled {
		if pattern == id {
			return true
		}

		if strings.HasSuffix(pattern, "*") &&
			strings.HasPrefix(id, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}

	return false
}
