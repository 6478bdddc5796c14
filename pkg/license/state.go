package license

// State is the manager's derived license condition.
//
// Lifecycle: a verified token is Valid until its expiry comes within the
// grace period (ExpiringSoon), then spends one grace period past expiry in
// InGrace, after which the entitlements are discarded (Unlicensed). With a
// zero grace period the terminal state is Expired instead. Installations
// without a token are FreeTier, terminal unless a token is loaded. Signature
// failure yields Invalid and revocation yields Revoked; both deny all
// admission.
type State int

const (
	StateUnlicensed State = iota
	StateValid
	StateExpiringSoon
	StateExpired
	StateInGrace
	StateRevoked
	StateFreeTier
	StateInvalid
)

var stateNames = [...]string{
	StateUnlicensed:   "unlicensed",
	StateValid:        "valid",
	StateExpiringSoon: "expiring_soon",
	StateExpired:      "expired",
	StateInGrace:      "in_grace",
	StateRevoked:      "revoked",
	StateFreeTier:     "free_tier",
	StateInvalid:      "invalid",
}

// String returns the snake_case state name used in license.state signals.
func (s State) String() string {
	if s < StateUnlicensed || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// Fatal reports whether the state denies all admission. Only signature
// failure and revocation are fatal; an expired or absent token degrades to
// free-tier entitlements instead.
func (s State) Fatal() bool {
	return s == StateInvalid || s == StateRevoked
}

// Entitled reports whether token entitlements (tier, features, limits) are
// in force. Outside these states the manager serves free-tier entitlements.
func (s State) Entitled() bool {
	switch s {
	case StateValid, StateExpiringSoon, StateInGrace:
		return true
	default:
		return false
	}
}
