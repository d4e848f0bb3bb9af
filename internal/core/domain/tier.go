package domain

// Tier is a subscription class for non-staff users.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// Unlimited is the sentinel for a limit that is never checked.
const Unlimited = -1

// TierLimits are the ceilings derived from a tier.
type TierLimits struct {
	DailyPrompts int `json:"daily_prompts"`
	MaxAPIKeys   int `json:"max_api_keys"`
	// APIRateLimit is requests per minute for API-key clients; 0 means no API access.
	APIRateLimit int `json:"api_rate_limit"`
}

// UnlimitedPrompts reports whether daily prompts are never counted.
func (l TierLimits) UnlimitedPrompts() bool {
	return l.DailyPrompts == Unlimited
}

var tierTable = map[Tier]TierLimits{
	TierFree:     {DailyPrompts: 10, MaxAPIKeys: 0, APIRateLimit: 0},
	TierStandard: {DailyPrompts: 100, MaxAPIKeys: 1, APIRateLimit: 60},
	TierPro:      {DailyPrompts: Unlimited, MaxAPIKeys: 5, APIRateLimit: 200},
	TierBusiness: {DailyPrompts: Unlimited, MaxAPIKeys: 20, APIRateLimit: 1000},
}

// StaffLimits applies to every staff identity regardless of its tier field.
var StaffLimits = TierLimits{DailyPrompts: Unlimited, MaxAPIKeys: 20, APIRateLimit: 1000}

// LimitsForTier looks up a tier, falling back to the free tier.
func LimitsForTier(t Tier) TierLimits {
	if l, ok := tierTable[t]; ok {
		return l
	}
	return tierTable[TierFree]
}

// LimitsFor returns the effective limits of an identity.
func LimitsFor(id *Identity) TierLimits {
	if id.IsStaff {
		return StaffLimits
	}
	return LimitsForTier(id.Tier)
}
