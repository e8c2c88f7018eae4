package synteny

// Tier is the color bucket of a link, as shown in the viewer's legend.
type Tier string

const (
	High    Tier = "high"
	Mid     Tier = "mid"
	Low     Tier = "low"
	Minimal Tier = "minimal"
)

// TierBound is the lowest identity, inclusive, that belongs to a tier.
type TierBound struct {
	Tier        Tier    `json:"name"`
	MinIdentity float64 `json:"minIdentity"`
}

// Tiers lists the tier boundaries from the highest to the lowest. The
// thresholds are shown in the viewer's legend and must stay in sync with it.
var Tiers = []TierBound{
	{High, 0.95},
	{Mid, 0.90},
	{Low, 0.85},
	{Minimal, 0},
}

// Identity returns the fraction of matching bases in an alignment block,
// clamped to [0, 1]. It returns 0 when blockLen is not positive; the PAF
// reader rejects such blocks before they get here.
func Identity(matches, blockLen int64) float64 {
	if blockLen <= 0 || matches <= 0 {
		return 0
	}
	if matches >= blockLen {
		return 1
	}
	return float64(matches) / float64(blockLen)
}

// Classify returns the tier of the given identity. Boundaries are closed
// below, so exactly 0.95 is High and exactly 0.90 is Mid.
func Classify(identity float64) Tier {
	for _, b := range Tiers {
		if identity >= b.MinIdentity {
			return b.Tier
		}
	}
	return Minimal
}
