package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tidebank/ledger-core/pkg"
)

func TestLimitFor(t *testing.T) {
	tests := []struct {
		name  string
		tier  pkg.Tier
		kyc   pkg.KYCStatus
		limit int64
	}{
		{"unverified tier1", pkg.Tier1, pkg.KYCUnverified, 1000},
		{"unverified tier3 still capped", pkg.Tier3, pkg.KYCUnverified, 1000},
		{"verified tier1", pkg.Tier1, pkg.KYCVerified, 50000},
		{"verified tier2", pkg.Tier2, pkg.KYCVerified, 100000},
		{"verified tier3", pkg.Tier3, pkg.KYCVerified, 5000000},
		{"pending tier2", pkg.Tier2, pkg.KYCPending, 100000},
		{"rejected tier1", pkg.Tier1, pkg.KYCRejected, 50000},
		{"unknown tier denies", pkg.Tier(""), pkg.KYCVerified, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LimitFor(tt.tier, tt.kyc)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.limit)), "got %s", got)
		})
	}
}
