package license

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/adapters"
)

// newSignedFixture signs the fixture token anchored at start and returns
// manager options wired to a fake clock.
func newSignedFixture(t *testing.T, start time.Time, mutate func(*Token)) (Options, *adapters.FakeClock) {
	t.Helper()

	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)

	tok := fixtureToken()
	tok.IssuedAt = start
	tok.Expiry = start.Add(time.Hour)

	if mutate != nil {
		mutate(&tok)
	}

	signed, err := Sign(tok, priv)
	require.NoError(t, err)

	clock := adapters.NewFakeClock(start)

	return Options{
		TokenJSON: signed,
		VendorKey: pub,
		Clock:     clock,
	}, clock
}

func TestNewManager_NoTokenIsFreeTier(t *testing.T) {
	t.Parallel()

	m, err := NewManager(Options{})
	require.NoError(t, err)

	assert.Equal(t, StateFreeTier, m.CurrentState())
	assert.Equal(t, TierFree, m.CurrentTier())
	assert.Equal(t, FreeTierMaxSlots, m.MaxSlots())
	assert.Equal(t, FreeTierMaxWorkUnitsPerMinute, m.MaxWorkUnitsPerMinute())
	assert.Equal(t, FreeTierMaxNodes, m.MaxNodes())
	assert.False(t, m.HasFeature("documents.convert"))
	assert.True(t, m.MeetsTierRequirement(TierFree))
	assert.False(t, m.MeetsTierRequirement(TierStarter))
}

func TestNewManager_ValidToken(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, _ := newSignedFixture(t, start, nil)

	m, err := NewManager(opts)
	require.NoError(t, err)

	assert.Equal(t, StateValid, m.CurrentState())
	assert.Equal(t, TierProfessional, m.CurrentTier())
	assert.Equal(t, 32, m.MaxSlots())
	assert.Equal(t, 6000, m.MaxWorkUnitsPerMinute())
	assert.Equal(t, 64, m.MaxNodes())
	assert.True(t, m.MeetsTierRequirement(TierProfessional))
	assert.False(t, m.MeetsTierRequirement(TierEnterprise))
}

func TestManager_FeatureWildcards(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, _ := newSignedFixture(t, start, nil)

	m, err := NewManager(opts)
	require.NoError(t, err)

	tests := []struct {
		name    string
		feature string
		want    bool
	}{
		{name: "wildcard_prefix_match", feature: "documents.convert", want: true},
		{name: "wildcard_deep_match", feature: "documents.extract.pdf", want: true},
		{name: "exact_match", feature: "analytics.bm25", want: true},
		{name: "prefix_without_separator", feature: "documentsx.convert", want: false},
		{name: "unrelated", feature: "mesh.join", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, m.HasFeature(tt.feature))
		})
	}
}

func TestManager_ExpiryTimeline(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, clock := newSignedFixture(t, start, nil)

	var transitions []State

	opts.OnStateChange = func(_, next State) {
		transitions = append(transitions, next)
	}

	m, err := NewManager(opts)
	require.NoError(t, err)
	require.Equal(t, StateValid, m.CurrentState())

	// Within the grace window before expiry.
	clock.Set(start.Add(time.Hour - 4*time.Minute))
	m.Revalidate()
	assert.Equal(t, StateExpiringSoon, m.CurrentState())
	assert.Equal(t, TierProfessional, m.CurrentTier(), "entitlements stay in force while expiring")

	// Just past expiry, inside grace.
	clock.Set(start.Add(time.Hour + 2*time.Minute))
	m.Revalidate()
	assert.Equal(t, StateInGrace, m.CurrentState())
	assert.Equal(t, 6000, m.MaxWorkUnitsPerMinute(), "grace keeps token limits")

	// Grace elapsed: entitlements fall back to free tier.
	clock.Set(start.Add(time.Hour + 10*time.Minute))
	m.Revalidate()
	assert.Equal(t, StateUnlicensed, m.CurrentState())
	assert.Equal(t, TierFree, m.CurrentTier())
	assert.Equal(t, FreeTierMaxWorkUnitsPerMinute, m.MaxWorkUnitsPerMinute())
	assert.False(t, m.HasFeature("documents.convert"))

	assert.Equal(t, []State{StateExpiringSoon, StateInGrace, StateUnlicensed}, transitions)
}

func TestManager_RevalidateWithoutChangeDoesNotNotify(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, clock := newSignedFixture(t, start, nil)

	calls := 0
	opts.OnStateChange = func(_, _ State) { calls++ }

	m, err := NewManager(opts)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	m.Revalidate()
	m.Revalidate()

	assert.Zero(t, calls)
}

func TestManager_ZeroGraceExpiresTerminally(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, clock := newSignedFixture(t, start, nil)
	opts.GracePeriod = -1 // explicit: no grace

	m, err := NewManager(opts)
	require.NoError(t, err)
	assert.Equal(t, StateValid, m.CurrentState())

	clock.Set(start.Add(time.Hour + time.Second))
	m.Revalidate()
	assert.Equal(t, StateExpired, m.CurrentState())
	assert.Equal(t, TierFree, m.CurrentTier())
}

func TestManager_BadSignatureIsInvalid(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, _ := newSignedFixture(t, start, nil)

	otherPub, _, err := GenerateKeypair()
	require.NoError(t, err)

	opts.VendorKey = otherPub

	m, err := NewManager(opts)
	require.NoError(t, err, "construction succeeds; the state carries the failure")

	assert.Equal(t, StateInvalid, m.CurrentState())
	assert.True(t, m.CurrentState().Fatal())
	assert.False(t, m.MeetsTierRequirement(TierFree), "invalid licenses admit nothing")
}

func TestManager_RevokedID(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, _ := newSignedFixture(t, start, nil)
	opts.RevokedIDs = []string{"lic-7f3a"}

	m, err := NewManager(opts)
	require.NoError(t, err)

	assert.Equal(t, StateRevoked, m.CurrentState())
	assert.True(t, m.CurrentState().Fatal())
}

func TestManager_IssuedInFuture(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("beyond_skew_is_invalid", func(t *testing.T) {
		t.Parallel()

		opts, _ := newSignedFixture(t, start, func(tok *Token) {
			tok.IssuedAt = start.Add(10 * time.Minute)
		})

		m, err := NewManager(opts)
		require.NoError(t, err)
		assert.Equal(t, StateInvalid, m.CurrentState())
	})

	t.Run("within_skew_is_tolerated", func(t *testing.T) {
		t.Parallel()

		opts, _ := newSignedFixture(t, start, func(tok *Token) {
			tok.IssuedAt = start.Add(3 * time.Minute)
		})

		m, err := NewManager(opts)
		require.NoError(t, err)
		assert.Equal(t, StateValid, m.CurrentState())
	})
}

func TestManager_CustomValidatorRejects(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, _ := newSignedFixture(t, start, nil)
	opts.Validator = func(Token) error { return errors.New("seat count exceeded") }

	m, err := NewManager(opts)
	require.NoError(t, err)
	assert.Equal(t, StateInvalid, m.CurrentState())
}

func TestManager_Overrides(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("expiry_override_replaces_token_expiry", func(t *testing.T) {
		t.Parallel()

		opts, _ := newSignedFixture(t, start, nil)

		early := start.Add(time.Minute)
		opts.Overrides.Expiry = &early
		opts.GracePeriod = -1

		clock := opts.Clock.(*adapters.FakeClock)
		clock.Set(start.Add(2 * time.Minute))

		m, err := NewManager(opts)
		require.NoError(t, err)
		assert.Equal(t, StateExpired, m.CurrentState(), "override shortens the token's own expiry")
	})

	t.Run("limit_and_tier_overrides", func(t *testing.T) {
		t.Parallel()

		opts, _ := newSignedFixture(t, start, nil)

		slots := 2
		tier := TierEnterprise
		opts.Overrides.MaxSlots = &slots
		opts.Overrides.Tier = &tier
		opts.Overrides.Features = []string{"mesh.*"}

		m, err := NewManager(opts)
		require.NoError(t, err)

		assert.Equal(t, 2, m.MaxSlots())
		assert.Equal(t, TierEnterprise, m.CurrentTier())
		assert.True(t, m.HasFeature("mesh.join"))
		assert.False(t, m.HasFeature("documents.convert"), "override replaces token features")
	})

	t.Run("overrides_apply_to_free_tier", func(t *testing.T) {
		t.Parallel()

		wu := 50
		m, err := NewManager(Options{
			Overrides: Overrides{MaxWorkUnitsPerMinute: &wu},
		})
		require.NoError(t, err)

		assert.Equal(t, StateFreeTier, m.CurrentState())
		assert.Equal(t, 50, m.MaxWorkUnitsPerMinute())
	})
}

func TestManager_Snapshot(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts, _ := newSignedFixture(t, start, nil)

	m, err := NewManager(opts)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, StateValid, snap.State)
	assert.Equal(t, "lic-7f3a", snap.LicenseID)
	assert.Equal(t, "Acme Robotics", snap.IssuedTo)
	assert.True(t, snap.Expiry.Equal(start.Add(time.Hour)))
	assert.Contains(t, snap.Features, "documents.*")
}

func TestNewManager_TokenWithoutVendorKey(t *testing.T) {
	t.Parallel()

	_, err := NewManager(Options{TokenJSON: []byte("{}")})
	assert.ErrorIs(t, err, ErrVendorKey)
}
