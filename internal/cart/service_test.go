package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, ErrCartNotFound
	}
	return m.cart, nil
}

func (m *mockRepository) AddLine(_ context.Context, userID string, line domain.CartLine) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID}
	}
	m.cart.Lines = append(m.cart.Lines, line)
	return nil
}

func (m *mockRepository) UpdateLine(_ context.Context, _ string, productID int64, upd LineUpdate) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.cart.Lines {
		if m.cart.Lines[i].ProductID == productID {
			if upd.Quantity != nil {
				m.cart.Lines[i].Quantity = *upd.Quantity
			}
			if upd.PaymentMethod != nil {
				m.cart.Lines[i].PaymentMethod = *upd.PaymentMethod
			}
			if upd.Installments != nil {
				m.cart.Lines[i].Installments = *upd.Installments
			}
			return nil
		}
	}
	return ErrLineNotFound
}

func (m *mockRepository) RemoveLine(_ context.Context, _ string, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, line := range m.cart.Lines {
		if line.ProductID == productID {
			m.cart.Lines = append(m.cart.Lines[:i], m.cart.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

func (m *mockRepository) DeleteCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = &domain.Cart{Lines: []domain.CartLine{}}
	return nil
}

type mockNotifier struct {
	m     sync.Mutex
	calls int
	lines []domain.CartLine
}

func (n *mockNotifier) CartUpdated(_ context.Context, _ string, lines []domain.CartLine) {
	n.m.Lock()
	defer n.m.Unlock()
	n.calls++
	n.lines = lines
}

func (n *mockNotifier) callCount() int {
	n.m.Lock()
	defer n.m.Unlock()
	return n.calls
}

func TestGetCart_NotFoundReturnsEmptyCart(t *testing.T) {
	sut := NewService(&mockRepository{}, nil)

	cart, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", cart.UserID)
	assert.Empty(t, cart.Lines)
}

func TestGetCart_RepoError(t *testing.T) {
	sut := NewService(&mockRepository{err: fmt.Errorf("database error")}, nil)

	cart, err := sut.GetCart(context.Background(), "123")
	require.ErrorContains(t, err, "database error")
	assert.Nil(t, cart)
}

func TestAddLine_DefaultsApplied(t *testing.T) {
	repo := &mockRepository{}
	sut := NewService(repo, nil)

	err := sut.AddLine(context.Background(), "123", domain.CartLine{ProductID: 1, UnitPrice: 5000})
	require.NoError(t, err)
	require.Len(t, repo.cart.Lines, 1)
	assert.Equal(t, 1, repo.cart.Lines[0].Quantity)
	assert.Equal(t, domain.PaymentFull, repo.cart.Lines[0].PaymentMethod)
	assert.Equal(t, 1, repo.cart.Lines[0].Installments)
}

func TestAddLine_NotifiesCollaborator(t *testing.T) {
	repo := &mockRepository{}
	notifier := &mockNotifier{}
	sut := NewService(repo, notifier)

	err := sut.AddLine(context.Background(), "123", domain.CartLine{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return notifier.callCount() == 1
	}, 100*time.Millisecond, 10*time.Millisecond, "notifier was not called")
}

func TestUpdateLine_Success(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{
		UserID: "123",
		Lines: []domain.CartLine{
			{ProductID: 1, Quantity: 1, PaymentMethod: domain.PaymentFull, Installments: 1},
		},
	}}
	sut := NewService(repo, nil)

	qty := 3
	method := domain.PaymentInstallments
	n := 6
	err := sut.UpdateLine(context.Background(), "123", 1, LineUpdate{
		Quantity:      &qty,
		PaymentMethod: &method,
		Installments:  &n,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.cart.Lines[0].Quantity)
	assert.Equal(t, domain.PaymentInstallments, repo.cart.Lines[0].PaymentMethod)
	assert.Equal(t, 6, repo.cart.Lines[0].Installments)
}

func TestRemoveLine_Success(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{
		UserID: "123",
		Lines: []domain.CartLine{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 2},
		},
	}}
	sut := NewService(repo, nil)

	err := sut.RemoveLine(context.Background(), "123", 1)
	require.NoError(t, err)
	require.Len(t, repo.cart.Lines, 1)
	assert.Equal(t, int64(2), repo.cart.Lines[0].ProductID)
}

func TestClearCart_NotifiesWithEmptyLines(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{
		UserID: "123",
		Lines:  []domain.CartLine{{ProductID: 1, Quantity: 1}},
	}}
	notifier := &mockNotifier{}
	sut := NewService(repo, notifier)

	err := sut.ClearCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Empty(t, repo.cart.Lines)

	require.Eventually(t, func() bool {
		return notifier.callCount() == 1
	}, 100*time.Millisecond, 10*time.Millisecond, "notifier was not called")
}

func TestClearCart_RepoError(t *testing.T) {
	repo := &mockRepository{
		cart: &domain.Cart{Lines: []domain.CartLine{{ProductID: 1}}},
		err:  fmt.Errorf("database error"),
	}
	sut := NewService(repo, nil)

	err := sut.ClearCart(context.Background(), "123")
	require.ErrorContains(t, err, "database error")
}
