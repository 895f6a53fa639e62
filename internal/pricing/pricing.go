package pricing

import (
	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/ErezMalka/bite-checkout-signing/internal/money"
)

// LineTotals is derived per render, never stored.
type LineTotals struct {
	Subtotal       money.Amount `json:"subtotal"`
	Surcharge      money.Amount `json:"surcharge"`
	SurchargePct   float64      `json:"surcharge_pct"`
	Total          money.Amount `json:"total"`
	MonthlyPayment money.Amount `json:"monthly_payment"`
	Installments   int          `json:"installments"`
}

// ComputeLineTotals prices a single cart line against its payment plan.
// Pure and deterministic. The surcharge percent is forced to 0 for full
// payment regardless of the stored installment count: installments are
// only meaningful when the shopper chose to pay in installments.
//
// Callers must clamp quantity >= 1, and installments >= 1 whenever the
// payment method is "installments".
func ComputeLineTotals(line domain.CartLine, schedule domain.PaymentPlanSchedule) LineTotals {
	if schedule == nil {
		schedule = domain.DefaultSchedule()
	}

	var pct float64
	installments := 0
	if line.PaymentMethod == domain.PaymentInstallments {
		installments = line.Installments
		pct = schedule[installments] // absent entry -> 0 surcharge
	}

	subtotal := line.UnitPrice * money.Amount(line.Quantity)
	surcharge := money.Round(float64(subtotal) * pct)
	total := subtotal + surcharge

	var monthly money.Amount
	if line.PaymentMethod == domain.PaymentInstallments {
		// Each line rounds independently; monthly x installments may drift
		// from total by up to installments-1 agorot.
		monthly = money.Round(float64(total) / float64(installments))
	}

	return LineTotals{
		Subtotal:       subtotal,
		Surcharge:      surcharge,
		SurchargePct:   pct,
		Total:          total,
		MonthlyPayment: monthly,
		Installments:   installments,
	}
}

// ComputeOrderTotals aggregates line totals for a whole cart. The max
// monthly payment is the worst-case concurrent monthly obligation, not a
// combined schedule, so lines are compared, not summed. An empty cart
// yields all zeros.
func ComputeOrderTotals(lines []domain.CartLine, schedules map[int64]domain.PaymentPlanSchedule) domain.OrderTotals {
	var totals domain.OrderTotals

	for _, line := range lines {
		lt := ComputeLineTotals(line, schedules[line.ProductID])
		totals.Subtotal += lt.Subtotal
		totals.Surcharge += lt.Surcharge
		totals.GrandTotal += lt.Total
		if lt.MonthlyPayment > totals.MaxMonthlyPayment {
			totals.MaxMonthlyPayment = lt.MonthlyPayment
		}
	}

	return totals
}

// BuildOrderLines converts priced cart lines into the order payload shape.
func BuildOrderLines(lines []domain.CartLine, schedules map[int64]domain.PaymentPlanSchedule) []domain.OrderLine {
	out := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		lt := ComputeLineTotals(line, schedules[line.ProductID])
		out = append(out, domain.OrderLine{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			PaymentMethod:  line.PaymentMethod,
			Installments:   lt.Installments,
			SurchargePct:   lt.SurchargePct,
			Subtotal:       lt.Subtotal,
			Surcharge:      lt.Surcharge,
			Total:          lt.Total,
			MonthlyPayment: lt.MonthlyPayment,
		})
	}
	return out
}
