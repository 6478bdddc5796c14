// Package gate implements the licensed component gate: the per-invocation
// admission check the scheduler runs before every atom. Outcomes are value
// variants, never errors; the scheduler maps them onto signals.
package gate

import (
	"fmt"
	"log/slog"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/license"
	"github.com/axonworks/axon/pkg/meter"
)

// Decision is the admission outcome for one firing.
type Decision string

// Admission outcomes.
const (
	// Admitted means all three checks passed and the cost was recorded.
	Admitted Decision = "admitted"

	// DegradedSkip means a license check failed but degradation is
	// allowed: the firing is skipped, the run continues.
	DegradedSkip Decision = "degraded_skip"

	// Throttled means the work-unit budget refused the cost. Nothing was
	// recorded; the next trigger retries.
	Throttled Decision = "throttled"

	// LicenseRequired means a license check failed and degradation is not
	// allowed.
	LicenseRequired Decision = "license_required"
)

// CostCalculator prices one invocation. The default is
// BaseCost + CostPerKB × sizeKB.
type CostCalculator func(contract atom.Contract, sizeKB float64) float64

// DefaultCost is the built-in CostCalculator.
func DefaultCost(contract atom.Contract, sizeKB float64) float64 {
	if sizeKB < 0 {
		sizeKB = 0
	}

	return contract.BaseCost + contract.CostPerKB*sizeKB
}

// Result carries the decision, the computed cost (recorded only when
// admitted), and a human-readable reason for refusals.
type Result struct {
	Decision Decision `json:"decision"`
	Cost     float64  `json:"cost"`
	Reason   string   `json:"reason,omitempty"`
}

// Granted reports whether the firing may proceed.
func (r Result) Granted() bool {
	return r.Decision == Admitted
}

// Options configures New.
type Options struct {
	Manager license.Manager
	Meter   *meter.Meter

	// AllowFreeTierDegradation turns tier and feature refusals into
	// DegradedSkip instead of LicenseRequired.
	AllowFreeTierDegradation bool

	// Cost overrides the pricing function. Nil selects DefaultCost.
	Cost CostCalculator

	Logger *slog.Logger
}

// Gate checks tier, features, and budget, in that order. Budget admission
// is atomic: the check and the record happen under one meter lock.
type Gate struct {
	opts Options
}

// New builds a gate. Manager and Meter must be set.
func New(opts Options) *Gate {
	if opts.Cost == nil {
		opts.Cost = DefaultCost
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Gate{opts: opts}
}

// Admit runs the three checks for one firing of contract with a payload of
// sizeKB. On Admitted the returned cost has been recorded against the
// meter under the contract's kind.
func (g *Gate) Admit(contract atom.Contract, sizeKB float64) Result {
	// Fatal states deny outright; degradation only softens tier and
	// feature shortfalls.
	if state := g.opts.Manager.CurrentState(); state.Fatal() {
		return Result{
			Decision: LicenseRequired,
			Reason:   fmt.Sprintf("license state %s", state),
		}
	}

	if !g.opts.Manager.MeetsTierRequirement(contract.MinimumTier) {
		return g.refuse(contract, fmt.Sprintf("requires tier %s, licensed for %s",
			contract.MinimumTier, g.opts.Manager.CurrentTier()))
	}

	for _, feature := range contract.RequiredFeatures {
		if !g.opts.Manager.HasFeature(feature) {
			return g.refuse(contract, fmt.Sprintf("feature %s not licensed", feature))
		}
	}

	cost := g.opts.Cost(contract, sizeKB)

	if !g.opts.Meter.TryConsume(cost, string(contract.Kind)) {
		return Result{
			Decision: Throttled,
			Cost:     cost,
			Reason: fmt.Sprintf("work-unit budget exhausted (%.0f/%d per minute)",
				g.opts.Meter.CurrentWorkUnits(), g.opts.Meter.MaxWorkUnits()),
		}
	}

	return Result{Decision: Admitted, Cost: cost}
}

// refuse maps a tier or feature failure onto the degradation policy.
func (g *Gate) refuse(contract atom.Contract, reason string) Result {
	if g.opts.AllowFreeTierDegradation {
		g.opts.Logger.Debug("degrading unlicensed atom",
			"atom", contract.Name,
			"reason", reason)

		return Result{Decision: DegradedSkip, Reason: reason}
	}

	return Result{Decision: LicenseRequired, Reason: reason}
}
