// Package policy holds the tiered transaction-limit rules.
package policy

import (
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg"
)

var (
	limitUnverified = decimal.NewFromInt(1000)
	limitTier1      = decimal.NewFromInt(50000)
	limitTier2      = decimal.NewFromInt(100000)
	limitTier3      = decimal.NewFromInt(5000000)
)

// LimitFor returns the maximum single-transaction amount for an owner with the
// given tier and KYC status. Pure and total; unknown tiers deny everything.
// First match wins: an unverified user is capped regardless of tier.
func LimitFor(tier pkg.Tier, kycStatus pkg.KYCStatus) decimal.Decimal {
	if kycStatus == pkg.KYCUnverified {
		return limitUnverified
	}
	switch tier {
	case pkg.Tier1:
		return limitTier1
	case pkg.Tier2:
		return limitTier2
	case pkg.Tier3:
		return limitTier3
	default:
		return decimal.Zero
	}
}
