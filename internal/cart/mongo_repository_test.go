package cart

import (
	"context"
	"testing"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupTestDB(t *testing.T) (Repository, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database("testdb")
	require.NoError(t, EnsureIndexes(ctx, db))

	repo := NewMongoRepository(db)

	cleanup := func() {
		client.Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testLine(productID int64) domain.CartLine {
	return domain.CartLine{
		ProductID:     productID,
		ProductName:   "Blender",
		UnitPrice:     10000,
		Quantity:      2,
		PaymentMethod: domain.PaymentInstallments,
		Installments:  12,
	}
}

func TestMongoGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestMongoAddLine_NewCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddLine(ctx, "user-1", testLine(1)))

	cart, err := repo.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", cart.UserID)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(1), cart.Lines[0].ProductID)
	assert.Equal(t, domain.PaymentInstallments, cart.Lines[0].PaymentMethod)
	assert.Equal(t, 12, cart.Lines[0].Installments)
}

func TestMongoAddLine_SameProductReplacesLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddLine(ctx, "user-1", testLine(1)))

	replacement := testLine(1)
	replacement.Quantity = 5
	replacement.PaymentMethod = domain.PaymentFull
	replacement.Installments = 1
	require.NoError(t, repo.AddLine(ctx, "user-1", replacement))

	cart, err := repo.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.Equal(t, domain.PaymentFull, cart.Lines[0].PaymentMethod)
}

func TestMongoUpdateLine_PartialUpdate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddLine(ctx, "user-1", testLine(1)))

	six := 6
	require.NoError(t, repo.UpdateLine(ctx, "user-1", 1, LineUpdate{Installments: &six}))

	cart, err := repo.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 6, cart.Lines[0].Installments)
	// Untouched fields survive a partial update
	assert.Equal(t, 2, cart.Lines[0].Quantity)
}

func TestMongoUpdateLine_MissingLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddLine(ctx, "user-1", testLine(1)))

	q := 3
	err := repo.UpdateLine(ctx, "user-1", 99, LineUpdate{Quantity: &q})
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestMongoRemoveLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddLine(ctx, "user-1", testLine(1)))
	require.NoError(t, repo.AddLine(ctx, "user-1", testLine(2)))

	require.NoError(t, repo.RemoveLine(ctx, "user-1", 1))

	cart, err := repo.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(2), cart.Lines[0].ProductID)
}

func TestMongoDeleteCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.AddLine(ctx, "user-1", testLine(1)))
	require.NoError(t, repo.DeleteCart(ctx, "user-1"))

	_, err := repo.GetCart(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	err = repo.DeleteCart(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}
