package cart

import (
	"context"
	"errors"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrLineNotFound = errors.New("line not found in cart")
)

// LineUpdate carries the editable fields of a cart line; nil means "leave
// unchanged".
type LineUpdate struct {
	Quantity      *int
	PaymentMethod *domain.PaymentMethod
	Installments  *int
}

// Repository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type Repository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddLine(ctx context.Context, userID string, line domain.CartLine) error
	UpdateLine(ctx context.Context, userID string, productID int64, update LineUpdate) error
	RemoveLine(ctx context.Context, userID string, productID int64) error
	DeleteCart(ctx context.Context, userID string) error
}
