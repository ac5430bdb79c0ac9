package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunRewards credits online time to recently active chats once per tick and
// announces any reward paid. It returns when ctx is done.
func (b *Bot) RunRewards(ctx context.Context) error {
	ticker := time.NewTicker(b.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			b.tick(ctx, now)
		}
	}
}

func (b *Bot) tick(ctx context.Context, now time.Time) {
	b.mu.Lock()
	chats := make([]*chat, 0, len(b.chats))
	for _, c := range b.chats {
		if c.active(now, b.opts.IdleAfter) {
			chats = append(chats, c)
		}
	}
	b.mu.Unlock()

	for _, c := range chats {
		reward := c.store.TickOnlineTime(ctx, b.opts.TickInterval)
		if !reward.Paid {
			continue
		}
		b.logger.Debug("Announcing online reward",
			zap.Int64("chat_id", c.id),
			zap.Float64("amount", reward.Amount))
		b.sendMessage(c.id, fmt.Sprintf("🎉 +%.0f coins for %s online! Balance: %.2f",
			reward.Amount, formatOnline(reward.OnlineSeconds), reward.Balance))
	}
}
