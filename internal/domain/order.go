package domain

import (
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/money"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSent      OrderStatus = "sent"
	OrderStatusSigned    OrderStatus = "signed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSigned || s == OrderStatusFailed || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

const (
	CurrencyILS = "ILS"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"

	DefaultCurrency = CurrencyILS
)

type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// OrderLine is a priced cart line as it appears in the order payload.
// Installments and SurchargePct are the effective values: 0 when the
// line is paid in full, whatever the shopper stored notwithstanding.
type OrderLine struct {
	ProductID      int64         `json:"product_id"`
	ProductName    string        `json:"product_name"`
	Quantity       int           `json:"quantity"`
	UnitPrice      money.Amount  `json:"unit_price"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Installments   int           `json:"installments"`
	SurchargePct   float64       `json:"surcharge_pct"`
	Subtotal       money.Amount  `json:"subtotal"`
	Surcharge      money.Amount  `json:"surcharge"`
	Total          money.Amount  `json:"total"`
	MonthlyPayment money.Amount  `json:"monthly_payment"`
}

type OrderTotals struct {
	Subtotal          money.Amount `json:"subtotal"`
	Surcharge         money.Amount `json:"surcharge"`
	GrandTotal        money.Amount `json:"grand_total"`
	MaxMonthlyPayment money.Amount `json:"max_monthly_payment"`
}

type OrderPayload struct {
	Currency string      `json:"currency"`
	Lines    []OrderLine `json:"lines"`
	Totals   OrderTotals `json:"totals"`
}

// OrderDraft is the unsigned order record awaiting the external
// document-signing flow.
type OrderDraft struct {
	ID            string       `json:"id"`
	CustomerName  string       `json:"customer_name"`
	CustomerPhone string       `json:"customer_phone"`
	CustomerEmail string       `json:"customer_email"`
	Currency      string       `json:"currency"`
	Payload       OrderPayload `json:"payload"`
	Status        OrderStatus  `json:"status"`
	SignURL       string       `json:"sign_url,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
