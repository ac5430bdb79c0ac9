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

func TestTickOnlineTime(t *testing.T) {
	amount := DefaultConfig().RewardAmount

	tests := []struct {
		name        string
		start       int64
		ticks       []time.Duration
		wantRewards int
		wantOnline  int64
	}{
		{
			name:        "crossing one interval pays once",
			start:       7199,
			ticks:       []time.Duration{time.Second},
			wantRewards: 1,
			wantOnline:  7200,
		},
		{
			name:        "no payout inside an interval",
			start:       0,
			ticks:       []time.Duration{time.Hour, 59 * time.Minute},
			wantRewards: 0,
			wantOnline:  7140,
		},
		{
			name:        "second payout needs another full interval",
			start:       7199,
			ticks:       []time.Duration{time.Second, time.Second, 7198 * time.Second},
			wantRewards: 1,
			wantOnline:  14399,
		},
		{
			name:        "next crossing pays again",
			start:       7199,
			ticks:       []time.Duration{time.Second, 7200 * time.Second},
			wantRewards: 2,
			wantOnline:  14400,
		},
		{
			name:        "large jump over several multiples pays once",
			start:       100,
			ticks:       []time.Duration{10 * time.Hour},
			wantRewards: 1,
			wantOnline:  36100,
		},
		{
			name:        "sub-second ticks accumulate",
			start:       0,
			ticks:       []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond},
			wantRewards: 0,
			wantOnline:  5,
		},
		{
			name:        "fractional ticks carry the remainder",
			start:       7197,
			ticks:       []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond},
			wantRewards: 1,
			wantOnline:  7200,
		},
		{
			name:        "non-positive deltas are ignored",
			start:       7199,
			ticks:       []time.Duration{0, -time.Hour, 500 * time.Millisecond},
			wantRewards: 0,
			wantOnline:  7199,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := reload(t, storage.NewMemoryStorage())
			s.SetUser(ctx, &models.UserProfile{Email: "a@x.com", Balance: 100, OnlineSeconds: tt.start})

			paid := 0
			for _, d := range tt.ticks {
				r := s.TickOnlineTime(ctx, d)
				if r.Paid {
					paid++
					assert.Equal(t, amount, r.Amount)
				}
			}

			user, ok := s.User()
			require.True(t, ok)
			assert.Equal(t, tt.wantRewards, paid)
			assert.Equal(t, tt.wantOnline, user.OnlineSeconds)
			assert.Equal(t, 100+float64(tt.wantRewards)*amount, user.Balance)
		})
	}
}

func TestTickOnlineTimeWithoutUser(t *testing.T) {
	s, _ := reload(t, storage.NewMemoryStorage())
	assert.Equal(t, Reward{}, s.TickOnlineTime(context.Background(), 3*time.Hour))
}

func TestTickOnlineTimePersists(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)
	s.SetUser(ctx, &models.UserProfile{Email: "a@x.com", OnlineSeconds: 7190})

	r := s.TickOnlineTime(ctx, 15*time.Second)
	require.True(t, r.Paid)

	_, state := reload(t, mirror)
	require.NotNil(t, state.User)
	assert.Equal(t, int64(7205), state.User.OnlineSeconds)
	assert.Equal(t, r.Balance, state.User.Balance)
}
