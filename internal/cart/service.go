package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
)

// Notifier is an optional external collaborator told about every cart
// mutation. Fire-and-forget: nothing is consumed back.
type Notifier interface {
	CartUpdated(ctx context.Context, userID string, lines []domain.CartLine)
}

type Service struct {
	repo     Repository
	notifier Notifier // may be nil
}

func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
	}
}

// GetCart returns the shopper's cart, or a fresh empty cart if none exists.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil && errors.Is(err, ErrCartNotFound) {
		return &domain.Cart{
			UserID:    userID,
			Lines:     nil,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddLine puts a product in the cart. New lines default to quantity 1 and
// full payment when the caller left them zero-valued.
func (s *Service) AddLine(ctx context.Context, userID string, line domain.CartLine) error {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	if line.PaymentMethod == "" {
		line.PaymentMethod = domain.PaymentFull
	}
	if line.Installments < 1 {
		line.Installments = 1
	}

	if err := s.repo.AddLine(ctx, userID, line); err != nil {
		log.Printf("repo add line error: %v \n", err)
		return err
	}

	s.notify(userID)
	return nil
}

func (s *Service) UpdateLine(ctx context.Context, userID string, productID int64, upd LineUpdate) error {
	if err := s.repo.UpdateLine(ctx, userID, productID, upd); err != nil {
		log.Printf("repo update line error: %v \n", err)
		return err
	}

	s.notify(userID)
	return nil
}

func (s *Service) RemoveLine(ctx context.Context, userID string, productID int64) error {
	if err := s.repo.RemoveLine(ctx, userID, productID); err != nil {
		log.Printf("repo remove line error: %v \n", err)
		return err
	}

	s.notify(userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		log.Printf("repo delete cart error: %v \n", err)
		return err
	}

	s.notify(userID)
	return nil
}

// notify sends the full updated line list to the external collaborator.
// Runs async so a slow broker never blocks a mutation.
func (s *Service) notify(userID string) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		cart, err := s.GetCart(ctx, userID)
		if err != nil {
			log.Printf("cart notify: failed to load cart: %v \n", err)
			return
		}
		s.notifier.CartUpdated(ctx, userID, cart.Lines)
	}()
}
