package license

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is an ordered license class: free < starter < professional <
// enterprise. The zero value is TierFree.
type Tier int

// The tier lattice, ascending.
const (
	TierFree Tier = iota
	TierStarter
	TierProfessional
	TierEnterprise
)

var tierNames = [...]string{
	TierFree:         "free",
	TierStarter:      "starter",
	TierProfessional: "professional",
	TierEnterprise:   "enterprise",
}

// String returns the lowercase tier name.
func (t Tier) String() string {
	if t < TierFree || int(t) >= len(tierNames) {
		return fmt.Sprintf("tier(%d)", int(t))
	}

	return tierNames[t]
}

// AtLeast reports whether t satisfies a requirement of req.
func (t Tier) AtLeast(req Tier) bool {
	return t >= req
}

// ParseTier resolves a case-insensitive tier name.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	for tier, known := range tierNames {
		if name == known {
			return Tier(tier), nil
		}
	}

	return TierFree, fmt.Errorf("unknown tier %q", s)
}

// MarshalJSON renders the tier as its name, matching the token wire format.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts a tier name.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("tier: %w", err)
	}

	parsed, err := ParseTier(name)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}
