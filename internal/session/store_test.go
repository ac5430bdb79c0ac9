package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/pride-prime/internal/models"
	"github.com/xaenox/pride-prime/internal/storage"
	"go.uber.org/zap"
)

var errQuota = errors.New("quota exceeded")

// brokenStorage fails every call, like a browser with storage disabled.
type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) ([]byte, error) { return nil, errQuota }
func (brokenStorage) Set(context.Context, string, []byte) error   { return errQuota }
func (brokenStorage) Delete(context.Context, string) error        { return errQuota }
func (brokenStorage) Close() error                                { return nil }

func newTestStore(t *testing.T, mirror storage.Storage) *Store {
	t.Helper()
	s := New(mirror, DefaultConfig(), zap.NewNop())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s
}

// reload simulates a page reload on the same mirror.
func reload(t *testing.T, mirror storage.Storage) (*Store, State) {
	t.Helper()
	s := newTestStore(t, mirror)
	return s, s.LoadInitialState(context.Background())
}

func TestLoadInitialStateDefaults(t *testing.T) {
	_, state := reload(t, storage.NewMemoryStorage())

	assert.Nil(t, state.User)
	assert.Equal(t, models.TabHome, state.Tab)
	assert.True(t, state.SidebarOpen)
	assert.Empty(t, state.Threads)
	assert.Empty(t, state.ActiveThreadID)
}

func TestLoadInitialStateDegradesPerKey(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	require.NoError(t, mirror.Set(ctx, keyUser, []byte(`{"name":`)))
	require.NoError(t, mirror.Set(ctx, keyTab, []byte(`settings`)))
	require.NoError(t, mirror.Set(ctx, keySidebar, []byte(`"not a bool"`)))
	require.NoError(t, mirror.Set(ctx, keyActiveThread, []byte(`ghost`)))

	_, state := reload(t, mirror)

	assert.Nil(t, state.User)
	assert.Equal(t, models.TabSettings, state.Tab)
	assert.True(t, state.SidebarOpen)
	assert.Empty(t, state.ActiveThreadID, "active id must reference an existing thread")
}

func TestLoadInitialStateReadsLegacyEntries(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	require.NoError(t, mirror.Set(ctx, keyUser, []byte(`{"name":"Ana","email":"a@x.com","avatar":"u://a","balance":3}`)))
	require.NoError(t, mirror.Set(ctx, keySidebar, []byte(`false`)))
	require.NoError(t, mirror.Set(ctx, keyThreads+":a@x.com", []byte(`[{"id":"1700","title":"hi","messages":[{"id":"1","sender":"Me","content":"hi","timestamp":"10:00"}],"lastUpdated":1700}]`)))
	require.NoError(t, mirror.Set(ctx, keyActiveThread+":a@x.com", []byte(`1700`)))

	_, state := reload(t, mirror)

	require.NotNil(t, state.User)
	assert.Equal(t, "Ana", state.User.Name)
	assert.False(t, state.SidebarOpen)
	require.Len(t, state.Threads, 1)
	assert.Equal(t, "hi", state.Threads[0].Messages[0].Content)
	assert.Equal(t, "1700", state.ActiveThreadID)
}

func TestSetUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, state := reload(t, mirror)
	require.Nil(t, state.User)

	profile := &models.UserProfile{Name: "Ana", Email: "a@x.com", Avatar: "u://a", Balance: 1000}
	s.SetUser(ctx, profile)

	_, state = reload(t, mirror)
	if diff := cmp.Diff(profile, state.User); diff != "" {
		t.Errorf("profile after reload (-want +got):\n%s", diff)
	}
}

func TestUpdateUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	_, err := s.UpdateUser(ctx, models.ProfilePatch{Name: ptr("nobody")})
	assert.ErrorIs(t, err, ErrNoUser, "update without a user is a no-op")

	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "a@x.com", Avatar: "u://a"})
	updated, err := s.UpdateUser(ctx, models.ProfilePatch{
		Bio:                ptr("hello"),
		Country:            ptr("IN"),
		Balance:            ptr(12.5),
		SubscriptionExpiry: ptr(int64(1714559400000)),
	})
	require.NoError(t, err)

	_, state := reload(t, mirror)
	require.NotNil(t, state.User)
	assert.Equal(t, updated, *state.User)
	assert.Equal(t, 12.5, state.User.Balance)
	assert.Equal(t, "IN", state.User.Country)
}

func TestBalanceNeverNegative(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "a@x.com", Balance: -50, OnlineSeconds: -3})
	user, ok := s.User()
	require.True(t, ok)
	assert.Zero(t, user.Balance)
	assert.Zero(t, user.OnlineSeconds)

	_, err := s.Credit(ctx, 20)
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch models.ProfilePatch
	}{
		{name: "negative balance", patch: models.ProfilePatch{Balance: ptr(-5.0), Bio: ptr("ignored")}},
		{name: "negative online time", patch: models.ProfilePatch{OnlineSeconds: ptr(int64(-1))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.UpdateUser(ctx, tt.patch)
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Equal(t, 20.0, got.Balance)
			assert.Empty(t, got.Bio, "a rejected patch applies no field")
		})
	}

	_, state := reload(t, mirror)
	require.NotNil(t, state.User)
	assert.Equal(t, 20.0, state.User.Balance)
}

func TestLegacyNegativeBalanceLoadsAsZero(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	require.NoError(t, mirror.Set(ctx, keyUser, []byte(`{"name":"Ana","email":"a@x.com","balance":-7}`)))

	_, state := reload(t, mirror)
	require.NotNil(t, state.User)
	assert.Zero(t, state.User.Balance)
}

func TestEmailChangeMovesHistory(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "a@x.com"})
	id := s.StartThread(ctx, NewThread{FirstText: "a-thread"})
	_, err := s.UploadVideo(ctx, "clip")
	require.NoError(t, err)

	updated, err := s.UpdateUser(ctx, models.ProfilePatch{Email: ptr("ana@y.com")})
	require.NoError(t, err)
	assert.Equal(t, "ana@y.com", updated.Email)

	for _, base := range accountKeys {
		_, err := mirror.Get(ctx, base+":a@x.com")
		assert.ErrorIs(t, err, storage.ErrNotFound, "old %s must be moved, not copied", base)
	}

	_, state := reload(t, mirror)
	require.Len(t, state.Threads, 1)
	assert.Equal(t, id, state.Threads[0].ID)
	assert.Equal(t, id, state.ActiveThreadID)

	s2, _ := reload(t, mirror)
	assert.Len(t, s2.Videos(), 1)
}

func TestEmailChangeKeepsOtherAccountHistory(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	s.SetUser(ctx, &models.UserProfile{Name: "Bo", Email: "b@x.com"})
	bThread := s.StartThread(ctx, NewThread{FirstText: "b-thread"})

	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "a@x.com"})
	aThread := s.StartThread(ctx, NewThread{FirstText: "a-thread"})

	got, err := s.UpdateUser(ctx, models.ProfilePatch{Email: ptr("B@x.com"), Name: ptr("Bo?")})
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "Ana", got.Name)

	threads := s.Threads()
	require.Len(t, threads, 1)
	assert.Equal(t, aThread, threads[0].ID)

	s.SetUser(ctx, &models.UserProfile{Name: "Bo", Email: "b@x.com"})
	threads = s.Threads()
	require.Len(t, threads, 1)
	assert.Equal(t, bThread, threads[0].ID)
	assert.Equal(t, "b-thread", threads[0].Title)
}

func TestLogoutKeepsThreads(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "a@x.com"})
	id := s.StartThread(ctx, NewThread{FirstText: "hi"})
	require.NoError(t, s.SetActiveTab(ctx, models.TabAIChat))

	s.SetUser(ctx, nil)
	_, err := mirror.Get(ctx, keyUser)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, s.Threads(), "guest sees no account history")

	_, state := reload(t, mirror)
	assert.Nil(t, state.User)
	assert.Equal(t, models.TabAIChat, state.Tab)

	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "A@x.com"})
	threads := s.Threads()
	require.Len(t, threads, 1)
	assert.Equal(t, id, threads[0].ID)
	assert.Equal(t, id, s.ActiveThreadID())
}

func TestThreadsArePerAccount(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())

	s.SetUser(ctx, &models.UserProfile{Email: "a@x.com"})
	s.StartThread(ctx, NewThread{FirstText: "from a"})

	s.SetUser(ctx, &models.UserProfile{Email: "b@x.com"})
	assert.Empty(t, s.Threads())
	assert.Empty(t, s.ActiveThreadID())
}

func TestSetActiveTab(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	require.NoError(t, s.SetActiveTab(ctx, models.TabReels))
	s.SetSidebarOpen(ctx, false)

	err := s.SetActiveTab(ctx, models.Tab("wallet"))
	assert.ErrorIs(t, err, ErrUnknownTab)
	assert.Equal(t, models.TabReels, s.UI().Tab)

	_, state := reload(t, mirror)
	assert.Equal(t, models.TabReels, state.Tab)
	assert.False(t, state.SidebarOpen)
}

func TestAppendMessageKeepsOrder(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	t1 := s.StartThread(ctx, NewThread{FirstText: "hi"})
	assert.Equal(t, t1, s.ActiveThreadID())

	require.NoError(t, s.AppendMessage(ctx, t1, models.Message{Sender: "Me", Content: "hi"}))
	require.NoError(t, s.AppendMessage(ctx, t1, models.Message{Sender: "AI", Content: "hello", IsAI: true}))

	_, state := reload(t, mirror)
	require.Len(t, state.Threads, 1)
	thread := state.Threads[0]
	assert.Equal(t, "hi", thread.Title)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "hi", thread.Messages[0].Content)
	assert.Equal(t, "hello", thread.Messages[1].Content)
	assert.True(t, thread.Messages[1].IsAI)
	assert.NotEmpty(t, thread.Messages[0].ID)
	assert.Equal(t, "10:30", thread.Messages[0].Timestamp)
	assert.Equal(t, t1, state.ActiveThreadID)
}

func TestAppendManyMessages(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())
	id := s.StartThread(ctx, NewThread{})

	var want []string
	for i := 0; i < 50; i++ {
		content := fmt.Sprintf("msg %d", i%7) // duplicates must survive
		want = append(want, content)
		require.NoError(t, s.AppendMessage(ctx, id, models.Message{Sender: "Me", Content: content}))
	}

	thread, err := s.Thread(id)
	require.NoError(t, err)
	var got []string
	for _, m := range thread.Messages {
		got = append(got, m.Content)
	}
	assert.Equal(t, want, got)
}

func TestAppendMessageMissingThread(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())
	s.StartThread(ctx, NewThread{FirstText: "hi"})
	before := s.Threads()

	err := s.AppendMessage(ctx, "missing-id", models.Message{Sender: "Me", Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
	if diff := cmp.Diff(before, s.Threads()); diff != "" {
		t.Errorf("threads changed (-before +after):\n%s", diff)
	}
}

func TestStartThreadSeedAndTitle(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())

	greeting := models.Message{Sender: "Pride AI", Content: "Dost!", IsAI: true}
	id := s.StartThread(ctx, NewThread{Seed: &greeting})
	thread, err := s.Thread(id)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreadTitle, thread.Title)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "Dost!", thread.Messages[0].Content)

	long := s.StartThread(ctx, NewThread{FirstText: "नमस्ते दोस्त, आज मौसम कैसा है?"})
	thread, err = s.Thread(long)
	require.NoError(t, err)
	assert.Len(t, []rune(thread.Title), titleRunes)
	assert.Equal(t, long, s.ActiveThreadID())
}

func TestDeleteThread(t *testing.T) {
	ctx := context.Background()
	mirror := storage.NewMemoryStorage()
	s, _ := reload(t, mirror)

	first := s.StartThread(ctx, NewThread{FirstText: "one"})
	second := s.StartThread(ctx, NewThread{FirstText: "two"})

	s.DeleteThread(ctx, first)
	assert.Equal(t, second, s.ActiveThreadID(), "deleting an inactive thread keeps the active one")

	s.DeleteThread(ctx, second)
	assert.Empty(t, s.ActiveThreadID())

	_, state := reload(t, mirror)
	assert.Empty(t, state.Threads)
	assert.Empty(t, state.ActiveThreadID)
}

func TestDeleteThreadMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())
	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "a@x.com"})
	s.StartThread(ctx, NewThread{FirstText: "hi"})

	before := s.LoadInitialState(ctx)
	s.DeleteThread(ctx, "missing-id")
	after := s.LoadInitialState(ctx)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
}

func TestSetActiveThread(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())
	a := s.StartThread(ctx, NewThread{FirstText: "a"})
	s.StartThread(ctx, NewThread{FirstText: "b"})

	require.NoError(t, s.SetActiveThread(ctx, a))
	assert.Equal(t, a, s.ActiveThreadID())

	assert.ErrorIs(t, s.SetActiveThread(ctx, "nope"), ErrNotFound)
	assert.Equal(t, a, s.ActiveThreadID())

	require.NoError(t, s.SetActiveThread(ctx, ""))
	assert.Empty(t, s.ActiveThreadID())
}

func TestThreadsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := reload(t, storage.NewMemoryStorage())
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	a := s.StartThread(ctx, NewThread{FirstText: "a"})
	clock = clock.Add(time.Minute)
	b := s.StartThread(ctx, NewThread{FirstText: "b"})
	clock = clock.Add(time.Minute)
	require.NoError(t, s.AppendMessage(ctx, a, models.Message{Content: "bump"}))

	threads := s.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, a, threads[0].ID)
	assert.Equal(t, b, threads[1].ID)
}

func TestBrokenStorageNeverFails(t *testing.T) {
	ctx := context.Background()
	s, state := reload(t, brokenStorage{})
	assert.Equal(t, models.TabHome, state.Tab)

	s.SetUser(ctx, &models.UserProfile{Name: "Ana", Email: "a@x.com", Balance: 10})
	updated, err := s.UpdateUser(ctx, models.ProfilePatch{Bio: ptr("bio")})
	require.NoError(t, err)
	assert.Equal(t, "bio", updated.Bio)

	require.NoError(t, s.SetActiveTab(ctx, models.TabGlobal))
	s.SetSidebarOpen(ctx, false)

	id := s.StartThread(ctx, NewThread{FirstText: "hi"})
	require.NoError(t, s.AppendMessage(ctx, id, models.Message{Content: "hi"}))
	thread, err := s.Thread(id)
	require.NoError(t, err)
	assert.Len(t, thread.Messages, 1)

	reward := s.TickOnlineTime(ctx, 2*time.Hour)
	assert.True(t, reward.Paid)

	_, err = s.Purchase(ctx, Purchase{Item: "boost", Cost: 1})
	require.NoError(t, err)
	_, err = s.UploadVideo(ctx, "clip")
	require.NoError(t, err)
	_, err = s.PostPlaza(ctx, "hello")
	require.NoError(t, err)

	s.DeleteThread(ctx, id)
	s.SetUser(ctx, nil)
	assert.Empty(t, s.Threads())
}

func ptr[T any](v T) *T {
	return &v
}
