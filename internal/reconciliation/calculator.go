package reconciliation

import "github.com/shopspring/decimal"

type Result struct {
	Match      bool
	Difference decimal.Decimal
}

// ComputeDifference compares the recorded total with the cash a rep reports.
// Amounts are compared exactly; Difference is the absolute gap.
func ComputeDifference(systemTotal, reportedCash decimal.Decimal) Result {
	return Result{
		Match:      systemTotal.Equal(reportedCash),
		Difference: systemTotal.Sub(reportedCash).Abs(),
	}
}
