package reconciliation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeDifference(t *testing.T) {
	tests := []struct {
		name     string
		system   string
		reported string
		match    bool
		diff     string
	}{
		{"exact", "450", "450", true, "0"},
		{"short", "450", "430", false, "20"},
		{"over", "430", "450", false, "20"},
		{"scale differs", "450.00", "450", true, "0"},
		{"one kobo", "0.30", "0.29", false, "0.01"},
		{"float trap", "0.3", "0.30", true, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ComputeDifference(decimal.RequireFromString(tt.system), decimal.RequireFromString(tt.reported))
			assert.Equal(t, tt.match, r.Match)
			assert.True(t, decimal.RequireFromString(tt.diff).Equal(r.Difference), r.Difference.String())
		})
	}
}

func TestComputeDifference_SumOfThirds(t *testing.T) {
	total := decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	assert.True(t, ComputeDifference(total, decimal.RequireFromString("0.3")).Match)
}
