package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reward reports the outcome of an online-time tick.
type Reward struct {
	Paid          bool
	Amount        float64
	Balance       float64
	OnlineSeconds int64
}

// TickOnlineTime adds delta to the user's online counter. Crossing one or
// more multiples of the reward interval in a single tick pays the reward
// once; multiples already passed never pay again. Fractions of a second
// carry over to the next tick.
func (s *Store) TickOnlineTime(ctx context.Context, delta time.Duration) Reward {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil || delta <= 0 {
		return Reward{}
	}

	total := s.onlineCarry + delta
	s.onlineCarry = total % time.Second
	seconds := int64(total / time.Second)
	if seconds == 0 {
		return Reward{Balance: s.user.Balance, OnlineSeconds: s.user.OnlineSeconds}
	}

	before := s.user.OnlineSeconds
	after := before + seconds
	s.user.OnlineSeconds = after

	reward := Reward{OnlineSeconds: after}
	if interval := int64(s.cfg.RewardInterval / time.Second); interval > 0 && after/interval > before/interval {
		s.user.Balance += s.cfg.RewardAmount
		reward.Paid = true
		reward.Amount = s.cfg.RewardAmount
		s.logger.Info("Online time reward",
			zap.String("account", s.accountID()),
			zap.Int64("online_seconds", after),
			zap.Float64("amount", s.cfg.RewardAmount))
	}
	reward.Balance = s.user.Balance

	s.write(ctx, keyUser, "user", s.user)
	return reward
}
