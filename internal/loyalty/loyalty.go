// Package loyalty implements the loyalty tier table, point earning rules,
// and next-tier progress calculation.
package loyalty

// Tier is a loyalty rank derived from lifetime points.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Lifetime-point thresholds at which each tier begins.
const (
	SilverThreshold   = 500
	GoldThreshold     = 1500
	PlatinumThreshold = 5000
)

// multiplierBP is the point-earning multiplier per tier, in hundredths
// (basis points of 1x). Integer math keeps the floor semantics exact.
var multiplierBP = map[Tier]int64{
	TierBronze:   100,
	TierSilver:   125,
	TierGold:     150,
	TierPlatinum: 200,
}

// TierFor returns the tier for a lifetime point total.
func TierFor(lifetimePoints int64) Tier {
	switch {
	case lifetimePoints >= PlatinumThreshold:
		return TierPlatinum
	case lifetimePoints >= GoldThreshold:
		return TierGold
	case lifetimePoints >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// Multiplier returns the tier's point multiplier as a float, for display.
// Point math uses the integer basis-point table, not this value.
func Multiplier(t Tier) float64 {
	return float64(multiplierBP[t]) / 100
}

// PointsForOrder returns the points earned by an order. Whole dollars are
// counted first, then the tier multiplier is applied and the result floored.
// The tier must be the one in effect before this order's points are added.
func PointsForOrder(totalCents int64, tier Tier) int64 {
	if totalCents <= 0 {
		return 0
	}
	bp, ok := multiplierBP[tier]
	if !ok {
		bp = multiplierBP[TierBronze]
	}
	dollars := totalCents / 100
	return dollars * bp / 100
}

// Progress describes how far through the current tier band an account is.
type Progress struct {
	Tier     Tier  `json:"tier"`
	NextTier *Tier `json:"next_tier,omitempty"`
	// Percent of the way from the current tier's threshold to the next.
	// 100 at platinum, which has no next tier.
	Percent int `json:"percent"`
	// Points still needed to reach the next tier; 0 at platinum.
	PointsToNext int64 `json:"points_to_next"`
}

// ProgressFor computes next-tier progress for a lifetime point total.
func ProgressFor(lifetimePoints int64) Progress {
	t := TierFor(lifetimePoints)

	var lo, hi int64
	var next Tier
	switch t {
	case TierBronze:
		lo, hi, next = 0, SilverThreshold, TierSilver
	case TierSilver:
		lo, hi, next = SilverThreshold, GoldThreshold, TierGold
	case TierGold:
		lo, hi, next = GoldThreshold, PlatinumThreshold, TierPlatinum
	default:
		return Progress{Tier: t, Percent: 100}
	}

	pct := int((lifetimePoints - lo) * 100 / (hi - lo))
	return Progress{
		Tier:         t,
		NextTier:     &next,
		Percent:      pct,
		PointsToNext: hi - lifetimePoints,
	}
}

// Flat point bonuses. Each award adds to lifetime points and triggers a
// tier recomputation.
const (
	SignupBonus         = 50
	ReferralBonus       = 100
	VerifiedReviewBonus = 25
)
