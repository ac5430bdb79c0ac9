package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/pride-prime/internal/models"
	"github.com/xaenox/pride-prime/internal/storage"
)

func TestPurchaseIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())

	_, err := s.Purchase(ctx, Purchase{Item: "boost", Cost: 1})
	assert.ErrorIs(t, err, ErrNoUser)

	s.SetUser(ctx, &models.UserProfile{Email: "a@x.com", Balance: 10})

	unlocked := func(u *models.UserProfile) { u.Bio = "verified" }
	_, err = s.Purchase(ctx, Purchase{Item: "badge", Cost: 25, Apply: unlocked})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	user, _ := s.User()
	assert.Equal(t, 10.0, user.Balance)
	assert.Empty(t, user.Bio, "unlock must not happen without the debit")

	after, err := s.Purchase(ctx, Purchase{Item: "badge", Cost: 4, Apply: unlocked})
	require.NoError(t, err)
	assert.Equal(t, 6.0, after.Balance)
	assert.Equal(t, "verified", after.Bio)

	_, err = s.Purchase(ctx, Purchase{Item: "refund", Cost: -4})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPurchaseApplyCannotTouchBalance(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())
	s.SetUser(ctx, &models.UserProfile{Email: "a@x.com", Balance: 10})

	after, err := s.Purchase(ctx, Purchase{Item: "x", Cost: 2, Apply: func(u *models.UserProfile) { u.Balance = 1000 }})
	require.NoError(t, err)
	assert.Equal(t, 8.0, after.Balance)
}

func TestSubscribeExtendsRunningSubscription(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())
	now := s.now()
	s.SetUser(ctx, &models.UserProfile{Email: "a@x.com", Balance: 20})

	assert.False(t, s.Subscribed())

	u, err := s.Subscribe(ctx, 5, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour).UnixMilli(), u.SubscriptionExpiry)
	assert.True(t, s.Subscribed())

	u, err = s.Subscribe(ctx, 5, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(60*24*time.Hour).UnixMilli(), u.SubscriptionExpiry)
	assert.Equal(t, 10.0, u.Balance)
}

func TestCredit(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())

	_, err := s.Credit(ctx, 5)
	assert.ErrorIs(t, err, ErrNoUser)

	s.SetUser(ctx, &models.UserProfile{Email: "a@x.com"})
	balance, err := s.Credit(ctx, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, balance)

	_, err = s.Credit(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
