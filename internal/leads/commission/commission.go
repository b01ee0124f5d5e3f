// Package commission computes the agency and spotter cut of a completed sale.
// All amounts are integer cents; rates are basis points (1 bps = 0.01%).
package commission

import (
	"errors"
	"fmt"
)

const bpsDenominator int64 = 10_000

// Result is the pair of amounts stored on a completed lead.
type Result struct {
	AgreedCents  int64
	SpotterCents int64
}

// Policy turns a final sale price into commission amounts. Implementations
// must be deterministic.
type Policy interface {
	Name() string
	Compute(finalPriceCents int64) (Result, error)
}

var ErrNonPositivePrice = errors.New("final price must be positive")

// applyBps returns amount*bps/10000 rounded half-up.
func applyBps(amount, bps int64) int64 {
	return roundHalfUp(amount * bps)
}

// roundHalfUp divides a bps-scaled non-negative value by 10000, rounding .5 up.
func roundHalfUp(scaled int64) int64 {
	return (scaled + bpsDenominator/2) / bpsDenominator
}

func checkBps(name string, bps int64) error {
	if bps < 0 || bps > bpsDenominator {
		return fmt.Errorf("%s must be between 0 and %d bps, got %d", name, bpsDenominator, bps)
	}
	return nil
}

// Percentage charges a flat agency rate on the price and gives the spotter a
// share of that commission.
type Percentage struct {
	AgencyRateBps   int64
	SpotterShareBps int64
}

// NewPercentage validates the rates.
func NewPercentage(agencyRateBps, spotterShareBps int64) (*Percentage, error) {
	if err := checkBps("agency_rate_bps", agencyRateBps); err != nil {
		return nil, err
	}
	if err := checkBps("spotter_share_bps", spotterShareBps); err != nil {
		return nil, err
	}
	return &Percentage{AgencyRateBps: agencyRateBps, SpotterShareBps: spotterShareBps}, nil
}

func (p *Percentage) Name() string { return "percentage" }

func (p *Percentage) Compute(finalPriceCents int64) (Result, error) {
	if finalPriceCents <= 0 {
		return Result{}, ErrNonPositivePrice
	}
	agreed := applyBps(finalPriceCents, p.AgencyRateBps)
	return Result{
		AgreedCents:  agreed,
		SpotterCents: applyBps(agreed, p.SpotterShareBps),
	}, nil
}

// Tier is one marginal price band. UpToCents of zero means unbounded and is
// only valid on the last tier. Any price above the last band is charged at
// the last band's rate.
type Tier struct {
	UpToCents int64 `yaml:"up_to_cents"`
	RateBps   int64 `yaml:"rate_bps"`
}

// Tiered applies each band's rate to the part of the price inside the band,
// like income tax brackets, then gives the spotter a share of the total.
type Tiered struct {
	Tiers           []Tier
	SpotterShareBps int64
}

// NewTiered validates that bands are strictly increasing and that only the
// last band is open-ended.
func NewTiered(tiers []Tier, spotterShareBps int64) (*Tiered, error) {
	if len(tiers) == 0 {
		return nil, errors.New("tiered policy needs at least one tier")
	}
	if err := checkBps("spotter_share_bps", spotterShareBps); err != nil {
		return nil, err
	}

	var prev int64
	for i, tier := range tiers {
		if err := checkBps(fmt.Sprintf("tiers[%d].rate_bps", i), tier.RateBps); err != nil {
			return nil, err
		}
		last := i == len(tiers)-1
		if tier.UpToCents == 0 {
			if !last {
				return nil, fmt.Errorf("tiers[%d]: only the last tier may be unbounded", i)
			}
			continue
		}
		if tier.UpToCents <= prev {
			return nil, fmt.Errorf("tiers[%d]: up_to_cents must increase", i)
		}
		prev = tier.UpToCents
	}

	copied := make([]Tier, len(tiers))
	copy(copied, tiers)
	return &Tiered{Tiers: copied, SpotterShareBps: spotterShareBps}, nil
}

func (t *Tiered) Name() string { return "tiered" }

func (t *Tiered) Compute(finalPriceCents int64) (Result, error) {
	if finalPriceCents <= 0 {
		return Result{}, ErrNonPositivePrice
	}

	// Sum in bps-scaled cents and round once so band boundaries do not
	// accumulate rounding error.
	var scaled, lower int64
	for i, tier := range t.Tiers {
		upper := tier.UpToCents
		if upper == 0 || upper > finalPriceCents || i == len(t.Tiers)-1 {
			upper = finalPriceCents
		}
		if upper > lower {
			scaled += (upper - lower) * tier.RateBps
			lower = upper
		}
		if lower >= finalPriceCents {
			break
		}
	}

	agreed := roundHalfUp(scaled)
	return Result{
		AgreedCents:  agreed,
		SpotterCents: applyBps(agreed, t.SpotterShareBps),
	}, nil
}
