package session

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/pride-prime/internal/models"
	"go.uber.org/zap"
)

// Purchase debits Cost and applies the unlock in one step. Apply works on a
// copy of the profile and must not touch the balance.
type Purchase struct {
	Item  string
	Cost  float64
	Apply func(*models.UserProfile)
}

// Purchase either debits and unlocks together or changes nothing.
func (s *Store) Purchase(ctx context.Context, p Purchase) (models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return models.UserProfile{}, ErrNoUser
	}
	if p.Cost < 0 {
		return *s.user, fmt.Errorf("%s: %w", p.Item, ErrInvalidAmount)
	}
	if s.user.Balance < p.Cost {
		return *s.user, fmt.Errorf("%s costs %.2f, balance %.2f: %w", p.Item, p.Cost, s.user.Balance, ErrInsufficientFunds)
	}

	next := *s.user
	if p.Apply != nil {
		p.Apply(&next)
	}
	next.Balance = s.user.Balance - p.Cost

	s.user = &next
	s.write(ctx, keyUser, "user", s.user)

	s.logger.Info("Purchase completed",
		zap.String("item", p.Item),
		zap.Float64("cost", p.Cost),
		zap.Float64("balance", next.Balance))
	return next, nil
}

// Subscribe buys period of premium. Time left on a running subscription is kept.
func (s *Store) Subscribe(ctx context.Context, cost float64, period time.Duration) (models.UserProfile, error) {
	now := s.now()
	return s.Purchase(ctx, Purchase{
		Item: "subscription",
		Cost: cost,
		Apply: func(u *models.UserProfile) {
			start := now
			if expiry := time.UnixMilli(u.SubscriptionExpiry); u.SubscriptionExpiry > 0 && expiry.After(now) {
				start = expiry
			}
			u.SubscriptionExpiry = start.Add(period).UnixMilli()
		},
	})
}

// Subscribed reports whether the user holds an unexpired subscription.
func (s *Store) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.user != nil && s.user.SubscriptionExpiry > s.now().UnixMilli()
}

func (s *Store) Credit(ctx context.Context, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return 0, ErrNoUser
	}
	if amount <= 0 {
		return s.user.Balance, ErrInvalidAmount
	}
	s.user.Balance += amount
	s.write(ctx, keyUser, "user", s.user)
	return s.user.Balance, nil
}
