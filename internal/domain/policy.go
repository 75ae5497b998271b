package domain

// Follow-amount defaults, in SOL.
const (
	// DefaultFollowAmount is used when a policy sets neither a fixed amount
	// nor a percentage.
	DefaultFollowAmount = 0.1
	// DefaultMaxFollowAmount caps percentage-based follow buys when the
	// policy does not set its own cap.
	DefaultMaxFollowAmount = 0.3
	// WeeklyExposureCeiling is the maximum 7-day net base-asset exposure
	// into a single token before follow buys are suppressed.
	WeeklyExposureCeiling = 0.5
	// DelayBuyHoldThreshold is the fraction of the originally observed
	// purchase the source must still hold when a delayed buy re-evaluates.
	DelayBuyHoldThreshold = 0.6
	// FullExitSnapThreshold snaps computed sell fractions above it to 1.0.
	FullExitSnapThreshold = 0.95
)

// FollowPolicy configures whether and how much to replicate one monitored
// wallet's trades. Loaded once at startup, immutable afterwards.
type FollowPolicy struct {
	Wallet          string  // monitored wallet address
	Note            string  // operator label for notifications
	FollowBuy       bool    // replicate buys
	FollowSell      bool    // replicate sells
	MinBuyingAmount float64 // skip buys where the source spent less SOL than this
	MaxMarketValue  float64 // skip buys into tokens above this market value, 0 = no limit
	FollowPercent   float64 // fraction of the source's spend to follow, used when FollowAmount == 0
	FollowAmount    float64 // fixed SOL amount per follow buy, takes precedence when > 0
	MaxFollowAmount float64 // cap for percentage-based buys, 0 = DefaultMaxFollowAmount
	DelaySeconds    int     // defer the buy and re-confirm the source still holds
}

// PolicySet is an immutable wallet -> policy mapping.
type PolicySet map[string]*FollowPolicy

// NewPolicySet builds the lookup map from a policy list.
func NewPolicySet(policies []*FollowPolicy) PolicySet {
	set := make(PolicySet, len(policies))
	for _, p := range policies {
		set[p.Wallet] = p
	}
	return set
}

// Get returns the policy for a wallet, or nil if the wallet is not followed.
func (s PolicySet) Get(wallet string) *FollowPolicy {
	return s[wallet]
}

// Wallets returns all monitored wallet addresses.
func (s PolicySet) Wallets() []string {
	wallets := make([]string, 0, len(s))
	for w := range s {
		wallets = append(wallets, w)
	}
	return wallets
}

// Label returns the operator-facing name for the wallet.
func (p *FollowPolicy) Label() string {
	if p.Note != "" {
		return p.Note
	}
	return p.Wallet
}
