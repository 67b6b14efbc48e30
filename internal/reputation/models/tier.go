package models

// Tier is the discrete reputation bracket derived from the numeric score.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// TierFor maps a score to its bracket. This is the only place the boundaries
// live; construction, event application and decay all call it so the mapping
// cannot drift.
func TierFor(score int64) Tier {
	switch {
	case score <= 300:
		return TierBronze
	case score <= 500:
		return TierSilver
	case score <= 700:
		return TierGold
	case score <= 900:
		return TierPlatinum
	default:
		return TierDiamond
	}
}
