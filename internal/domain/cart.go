package domain

import (
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/money"
)

type PaymentMethod string

const (
	PaymentFull         PaymentMethod = "full"
	PaymentInstallments PaymentMethod = "installments"
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartLine is one product entry in a shopper's cart. Installments is only
// meaningful when PaymentMethod is "installments"; for full payment it is
// implicitly 1.
type CartLine struct {
	ProductID     int64         `bson:"product_id" json:"product_id"`
	ProductName   string        `bson:"product_name" json:"product_name"`
	UnitPrice     money.Amount  `bson:"unit_price" json:"unit_price"`
	Quantity      int           `bson:"quantity" json:"quantity"`
	PaymentMethod PaymentMethod `bson:"payment_method" json:"payment_method"`
	Installments  int           `bson:"installments" json:"installments"`
	AddedAt       time.Time     `bson:"added_at" json:"added_at"`
}
