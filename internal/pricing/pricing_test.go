package pricing

import (
	"testing"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/ErezMalka/bite-checkout-signing/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLineTotals_InstallmentsWithSurcharge(t *testing.T) {
	line := domain.CartLine{
		ProductID:     1,
		UnitPrice:     10000, // 100.00
		Quantity:      2,
		PaymentMethod: domain.PaymentInstallments,
		Installments:  12,
	}
	schedule := domain.PaymentPlanSchedule{12: 0.08}

	lt := ComputeLineTotals(line, schedule)
	assert.Equal(t, money.Amount(20000), lt.Subtotal)
	assert.Equal(t, money.Amount(1600), lt.Surcharge)
	assert.Equal(t, 0.08, lt.SurchargePct)
	assert.Equal(t, money.Amount(21600), lt.Total)
	assert.Equal(t, money.Amount(1800), lt.MonthlyPayment)
	assert.Equal(t, 12, lt.Installments)
}

func TestComputeLineTotals_FullPaymentIgnoresStoredInstallments(t *testing.T) {
	line := domain.CartLine{
		UnitPrice:     5000,
		Quantity:      3,
		PaymentMethod: domain.PaymentFull,
		Installments:  12, // stale from an earlier edit; must not matter
	}

	lt := ComputeLineTotals(line, domain.PaymentPlanSchedule{12: 0.08})
	assert.Equal(t, money.Amount(15000), lt.Subtotal)
	assert.Equal(t, money.Amount(0), lt.Surcharge)
	assert.Equal(t, 0.0, lt.SurchargePct)
	assert.Equal(t, money.Amount(15000), lt.Total)
	assert.Equal(t, money.Amount(0), lt.MonthlyPayment)
	assert.Equal(t, 0, lt.Installments)
}

func TestComputeLineTotals_NilScheduleFallsBackToDefault(t *testing.T) {
	line := domain.CartLine{
		UnitPrice:     10000,
		Quantity:      1,
		PaymentMethod: domain.PaymentInstallments,
		Installments:  3,
	}

	lt := ComputeLineTotals(line, nil)
	assert.Equal(t, money.Amount(200), lt.Surcharge) // 2% default for 3 installments
	assert.Equal(t, money.Amount(10200), lt.Total)
	assert.Equal(t, money.Amount(3400), lt.MonthlyPayment)
}

func TestComputeLineTotals_AbsentPlanEntryMeansNoSurcharge(t *testing.T) {
	line := domain.CartLine{
		UnitPrice:     10000,
		Quantity:      1,
		PaymentMethod: domain.PaymentInstallments,
		Installments:  6,
	}
	// Product-specific plan only covers 3 installments.
	schedule := domain.PaymentPlanSchedule{3: 0.05}

	lt := ComputeLineTotals(line, schedule)
	assert.Equal(t, money.Amount(0), lt.Surcharge)
	assert.Equal(t, money.Amount(10000), lt.Total)
	assert.Equal(t, money.Amount(1667), lt.MonthlyPayment)
}

func TestComputeLineTotals_TotalNeverBelowSubtotal(t *testing.T) {
	for _, pct := range []float64{0, 0.001, 0.02, 0.08, 0.5, 0.999} {
		line := domain.CartLine{
			UnitPrice:     777,
			Quantity:      3,
			PaymentMethod: domain.PaymentInstallments,
			Installments:  3,
		}
		lt := ComputeLineTotals(line, domain.PaymentPlanSchedule{3: pct})
		require.GreaterOrEqual(t, lt.Surcharge, money.Amount(0), "pct=%v", pct)
		require.GreaterOrEqual(t, lt.Total, lt.Subtotal, "pct=%v", pct)
	}
}

func TestComputeLineTotals_RoundingDriftBounded(t *testing.T) {
	// 10001 agorot over 3 installments: per-line rounding may drift from
	// the total by at most installments-1 agorot.
	line := domain.CartLine{
		UnitPrice:     10001,
		Quantity:      1,
		PaymentMethod: domain.PaymentInstallments,
		Installments:  3,
	}
	lt := ComputeLineTotals(line, domain.PaymentPlanSchedule{3: 0})

	drift := lt.MonthlyPayment*3 - lt.Total
	if drift < 0 {
		drift = -drift
	}
	assert.LessOrEqual(t, drift, money.Amount(2))
}

func TestComputeOrderTotals_Empty(t *testing.T) {
	totals := ComputeOrderTotals(nil, nil)
	assert.Equal(t, domain.OrderTotals{}, totals)
}

func TestComputeOrderTotals_MaxMonthlyIsMaxNotSum(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: 1, UnitPrice: 6000, Quantity: 1, PaymentMethod: domain.PaymentInstallments, Installments: 12},
		{ProductID: 2, UnitPrice: 14400, Quantity: 1, PaymentMethod: domain.PaymentInstallments, Installments: 12},
	}
	schedules := map[int64]domain.PaymentPlanSchedule{
		1: {12: 0},
		2: {12: 0},
	}

	totals := ComputeOrderTotals(lines, schedules)
	assert.Equal(t, money.Amount(500), money.Round(6000.0/12))
	assert.Equal(t, money.Amount(1200), totals.MaxMonthlyPayment)
	assert.Equal(t, money.Amount(20400), totals.GrandTotal)
}

func TestComputeOrderTotals_SumsAndMax(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: 1, UnitPrice: 10000, Quantity: 2, PaymentMethod: domain.PaymentInstallments, Installments: 12},
		{ProductID: 2, UnitPrice: 4000, Quantity: 1, PaymentMethod: domain.PaymentFull},
	}
	schedules := map[int64]domain.PaymentPlanSchedule{
		1: {12: 0.08},
	}

	totals := ComputeOrderTotals(lines, schedules)
	assert.Equal(t, money.Amount(24000), totals.Subtotal)
	assert.Equal(t, money.Amount(1600), totals.Surcharge)
	assert.Equal(t, money.Amount(25600), totals.GrandTotal)
	assert.Equal(t, money.Amount(1800), totals.MaxMonthlyPayment)
}

func TestBuildOrderLines(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: 7, ProductName: "Blender", UnitPrice: 10000, Quantity: 2, PaymentMethod: domain.PaymentInstallments, Installments: 12},
	}
	schedules := map[int64]domain.PaymentPlanSchedule{7: {12: 0.08}}

	out := BuildOrderLines(lines, schedules)
	require.Len(t, out, 1)
	assert.Equal(t, int64(7), out[0].ProductID)
	assert.Equal(t, "Blender", out[0].ProductName)
	assert.Equal(t, money.Amount(20000), out[0].Subtotal)
	assert.Equal(t, money.Amount(1600), out[0].Surcharge)
	assert.Equal(t, money.Amount(21600), out[0].Total)
	assert.Equal(t, money.Amount(1800), out[0].MonthlyPayment)
	assert.Equal(t, 12, out[0].Installments)
	assert.Equal(t, 0.08, out[0].SurchargePct)
}
