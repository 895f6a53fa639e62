package domain

// PaymentPlanSchedule maps an installment count to its surcharge fraction,
// e.g. {3: 0.02} means paying in 3 installments costs 2% extra.
type PaymentPlanSchedule map[int]float64

// InstallmentOptions is the fixed set of offered installment counts.
var InstallmentOptions = []int{1, 3, 6, 12}

// DefaultSchedule returns the global fallback schedule used when a product
// has no stored payment plan. A fresh map is returned every call so callers
// can never corrupt shared state.
func DefaultSchedule() PaymentPlanSchedule {
	return PaymentPlanSchedule{
		1:  0.000,
		3:  0.020,
		6:  0.040,
		12: 0.080,
	}
}

// ValidInstallments reports whether n is one of the offered counts.
func ValidInstallments(n int) bool {
	for _, opt := range InstallmentOptions {
		if n == opt {
			return true
		}
	}
	return false
}
