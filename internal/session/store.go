package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/pride-prime/internal/models"
	"github.com/xaenox/pride-prime/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("session: not found")
	ErrUnknownTab        = errors.New("session: unknown tab")
	ErrNoUser            = errors.New("session: no user signed in")
	ErrInsufficientFunds = errors.New("session: insufficient balance")
	ErrInvalidAmount     = errors.New("session: amount must be positive")
	ErrEmpty             = errors.New("session: empty input")
	ErrAccountExists     = errors.New("session: account already has saved history")
)

// DefaultThreadTitle names threads opened explicitly by the user.
const DefaultThreadTitle = "New Conversation"

const titleRunes = 20

// Mirror keys. Keys marked per-account get ":<email>" appended once a user is
// signed in.
const (
	keyUser         = "pp_user"
	keyTab          = "pp_tab"
	keySidebar      = "pp_side"
	keyThreads      = "pp_ai_sessions"        // per-account
	keyActiveThread = "pp_ai_current_session" // per-account
	keyVideos       = "pp_videos"             // per-account
	keyPlaza        = "pp_plaza"              // per-region
	keyHubs         = "pp_hubs"
)

type Config struct {
	RewardInterval time.Duration
	RewardAmount   float64
	UploadBonus    float64
}

func DefaultConfig() Config {
	return Config{
		RewardInterval: 7200 * time.Second,
		RewardAmount:   5,
		UploadBonus:    1,
	}
}

// State is the snapshot returned by LoadInitialState.
type State struct {
	User           *models.UserProfile
	Tab            models.Tab
	SidebarOpen    bool
	Threads        []models.Thread
	ActiveThreadID string
}

// NewThread describes a thread to open. FirstText is the text the user is
// about to send and only names the thread; Seed, when set, becomes the first
// message.
type NewThread struct {
	FirstText string
	Seed      *models.Message
}

// Store owns the in-memory session state and mirrors every change to
// durable storage. Mirror failures are logged and never returned.
type Store struct {
	mu     sync.Mutex
	mirror storage.Storage
	cfg    Config
	logger *zap.Logger

	now   func() time.Time
	newID func() string

	user        *models.UserProfile
	onlineCarry time.Duration // sub-second remainder of online ticks
	ui      models.UIState
	threads []models.Thread // newest first
	videos  []models.Video
	hubs    []models.Hub
	plaza   map[string][]models.Message
}

func New(mirror storage.Storage, cfg Config, logger *zap.Logger) *Store {
	return &Store{
		mirror: mirror,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		ui:     models.UIState{Tab: models.TabHome, SidebarOpen: true},
		plaza:  make(map[string][]models.Message),
	}
}

// LoadInitialState seeds memory from the mirror and returns the result. Each
// key that is missing or unreadable falls back to its own default.
func (s *Store) LoadInitialState(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.onlineCarry = 0
	var user models.UserProfile
	if s.read(ctx, keyUser, "user", &user) {
		s.user = s.sanitize(user)
	}

	s.ui = models.UIState{Tab: models.TabHome, SidebarOpen: true}
	var tab string
	if s.read(ctx, keyTab, "tab", &tab) && models.Tab(tab).Valid() {
		s.ui.Tab = models.Tab(tab)
	}
	var sidebar bool
	if s.read(ctx, keySidebar, "sidebar", &sidebar) {
		s.ui.SidebarOpen = sidebar
	}

	s.hubs = nil
	var hubs []models.Hub
	if s.read(ctx, keyHubs, "hubs", &hubs) {
		s.hubs = hubs
	}
	s.plaza = make(map[string][]models.Message)

	s.loadAccountLocked(ctx)
	return s.stateLocked()
}

// loadAccountLocked replaces the per-account state with what the mirror holds
// for the current user (or the guest namespace).
func (s *Store) loadAccountLocked(ctx context.Context) {
	s.threads = nil
	var threads []models.Thread
	if s.read(ctx, s.accountKey(keyThreads), "threads", &threads) {
		s.threads = threads
	}

	s.ui.ActiveThreadID = ""
	var active string
	if s.read(ctx, s.accountKey(keyActiveThread), "active_thread", &active) && s.indexLocked(active) >= 0 {
		s.ui.ActiveThreadID = active
	}

	s.videos = nil
	var videos []models.Video
	if s.read(ctx, s.accountKey(keyVideos), "videos", &videos) {
		s.videos = videos
	}
}

func (s *Store) stateLocked() State {
	return State{
		User:           s.userLocked(),
		Tab:            s.ui.Tab,
		SidebarOpen:    s.ui.SidebarOpen,
		Threads:        s.threadsLocked(),
		ActiveThreadID: s.ui.ActiveThreadID,
	}
}

// SetUser replaces the signed-in profile. Nil signs out and removes only the
// user entry; saved threads stay in the mirror for the next sign-in.
func (s *Store) SetUser(ctx context.Context, profile *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.accountID()
	if profile == nil {
		s.user = nil
		if err := s.mirror.Delete(ctx, keyUser); err != nil {
			s.logger.Warn("Failed to clear user entry", zap.Error(err))
		}
	} else {
		s.user = s.sanitize(*profile)
		s.write(ctx, keyUser, "user", s.user)
	}

	if s.accountID() != previous {
		s.onlineCarry = 0
		s.loadAccountLocked(ctx)
	}
}

// UpdateUser merges patch into the current user and returns the result. It
// changes nothing and returns ErrNoUser when nobody is signed in,
// ErrInvalidAmount for a negative balance or online counter, and
// ErrAccountExists when a new email already owns saved history.
func (s *Store) UpdateUser(ctx context.Context, patch models.ProfilePatch) (models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return models.UserProfile{}, ErrNoUser
	}
	if patch.Balance != nil && *patch.Balance < 0 {
		return *s.user, fmt.Errorf("balance %.2f: %w", *patch.Balance, ErrInvalidAmount)
	}
	if patch.OnlineSeconds != nil && *patch.OnlineSeconds < 0 {
		return *s.user, fmt.Errorf("online time %d: %w", *patch.OnlineSeconds, ErrInvalidAmount)
	}

	next := *s.user
	patch.Apply(&next)

	previous := s.accountID()
	target := accountOf(&next)
	if target != previous {
		if err := s.checkAccountFreeLocked(ctx, target); err != nil {
			return *s.user, err
		}
	}

	s.user = &next
	s.write(ctx, keyUser, "user", s.user)

	// An email change moves the account's history to the new namespace.
	if target != previous {
		s.writeThreadsLocked(ctx)
		s.writeActiveLocked(ctx)
		s.write(ctx, s.accountKey(keyVideos), "videos", s.videos)
		s.deleteAccountLocked(ctx, previous)
		s.logger.Info("Account history moved",
			zap.String("from", previous),
			zap.String("to", target))
	}
	return *s.user, nil
}

func (s *Store) User() (models.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return models.UserProfile{}, false
	}
	return *s.user, true
}

func (s *Store) UI() models.UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}

func (s *Store) SetActiveTab(ctx context.Context, tab models.Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%q: %w", tab, ErrUnknownTab)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ui.Tab = tab
	s.write(ctx, keyTab, "tab", string(tab))
	return nil
}

func (s *Store) SetSidebarOpen(ctx context.Context, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ui.SidebarOpen = open
	s.write(ctx, keySidebar, "sidebar", open)
}

// StartThread opens a new thread, makes it active and returns its id.
func (s *Store) StartThread(ctx context.Context, nt NewThread) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	title := DefaultThreadTitle
	if text := strings.TrimSpace(nt.FirstText); text != "" {
		title = strings.TrimSpace(truncateRunes(text, titleRunes))
	}

	thread := models.Thread{
		ID:          s.newID(),
		Title:       title,
		Messages:    []models.Message{},
		LastUpdated: s.now().UnixMilli(),
	}
	if nt.Seed != nil {
		thread.Messages = append(thread.Messages, s.stamp(*nt.Seed))
	}

	s.threads = append([]models.Thread{thread}, s.threads...)
	s.ui.ActiveThreadID = thread.ID
	s.writeThreadsLocked(ctx)
	s.writeActiveLocked(ctx)

	s.logger.Debug("Started thread", zap.String("thread_id", thread.ID))
	return thread.ID
}

// AppendMessage adds msg to the end of the thread. Missing ID and timestamp
// are filled in.
func (s *Store) AppendMessage(ctx context.Context, threadID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(threadID)
	if i < 0 {
		return fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}

	s.threads[i].Messages = append(s.threads[i].Messages, s.stamp(msg))
	s.threads[i].LastUpdated = s.now().UnixMilli()
	s.writeThreadsLocked(ctx)
	return nil
}

// DeleteThread removes the thread. Unknown ids are ignored.
func (s *Store) DeleteThread(ctx context.Context, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(threadID)
	if i < 0 {
		return
	}

	s.threads = append(s.threads[:i:i], s.threads[i+1:]...)
	s.writeThreadsLocked(ctx)
	if s.ui.ActiveThreadID == threadID {
		s.ui.ActiveThreadID = ""
		s.writeActiveLocked(ctx)
	}
}

// SetActiveThread switches the active thread. An empty id clears it.
func (s *Store) SetActiveThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if threadID != "" && s.indexLocked(threadID) < 0 {
		return fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	s.ui.ActiveThreadID = threadID
	s.writeActiveLocked(ctx)
	return nil
}

func (s *Store) ActiveThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(s.ui.ActiveThreadID) < 0 {
		return ""
	}
	return s.ui.ActiveThreadID
}

func (s *Store) Thread(threadID string) (models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(threadID)
	if i < 0 {
		return models.Thread{}, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	return s.threads[i].Clone(), nil
}

// Threads returns every thread, most recently updated first.
func (s *Store) Threads() []models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadsLocked()
}

func (s *Store) threadsLocked() []models.Thread {
	out := make([]models.Thread, len(s.threads))
	for i, t := range s.threads {
		out[i] = t.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdated > out[j].LastUpdated
	})
	return out
}

func (s *Store) userLocked() *models.UserProfile {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) indexLocked(threadID string) int {
	if threadID == "" {
		return -1
	}
	for i := range s.threads {
		if s.threads[i].ID == threadID {
			return i
		}
	}
	return -1
}

func (s *Store) stamp(msg models.Message) models.Message {
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = s.now().Format("15:04")
	}
	return msg
}

// accountKeys are the keys namespaced per account.
var accountKeys = []string{keyThreads, keyActiveThread, keyVideos}

func accountOf(u *models.UserProfile) string {
	if u == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(u.Email))
}

func namespaced(base, account string) string {
	if account != "" {
		return base + ":" + account
	}
	return base
}

func (s *Store) accountID() string {
	return accountOf(s.user)
}

func (s *Store) accountKey(base string) string {
	return namespaced(base, s.accountID())
}

// checkAccountFreeLocked fails if any per-account key of account is already
// in the mirror.
func (s *Store) checkAccountFreeLocked(ctx context.Context, account string) error {
	for _, base := range accountKeys {
		key := namespaced(base, account)
		_, err := s.mirror.Get(ctx, key)
		switch {
		case err == nil:
			return fmt.Errorf("%q: %w", account, ErrAccountExists)
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("checking %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) deleteAccountLocked(ctx context.Context, account string) {
	for _, base := range accountKeys {
		key := namespaced(base, account)
		if err := s.mirror.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to clear session state", zap.String("key", key), zap.Error(err))
		}
	}
}

// sanitize copies u, raising negative counters to zero.
func (s *Store) sanitize(u models.UserProfile) *models.UserProfile {
	if u.Balance < 0 {
		s.logger.Warn("Negative balance reset to zero",
			zap.String("account", accountOf(&u)),
			zap.Float64("balance", u.Balance))
		u.Balance = 0
	}
	if u.OnlineSeconds < 0 {
		u.OnlineSeconds = 0
	}
	return &u
}

func (s *Store) writeThreadsLocked(ctx context.Context) {
	s.write(ctx, s.accountKey(keyThreads), "threads", s.threads)
}

func (s *Store) writeActiveLocked(ctx context.Context) {
	key := s.accountKey(keyActiveThread)
	if s.ui.ActiveThreadID == "" {
		if err := s.mirror.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to clear session state", zap.String("key", key), zap.Error(err))
		}
		return
	}
	s.write(ctx, key, "active_thread", s.ui.ActiveThreadID)
}

// write mirrors v under key. Failures are logged and dropped.
func (s *Store) write(ctx context.Context, key, kind string, v any) {
	raw, err := storage.Encode(kind, v)
	if err == nil {
		err = s.mirror.Set(ctx, key, raw)
	}
	if err != nil {
		s.logger.Warn("Failed to write session state",
			zap.String("key", key),
			zap.Error(err))
	}
}

// read decodes key into v and reports whether v now holds a stored value.
func (s *Store) read(ctx context.Context, key, kind string, v any) bool {
	raw, err := s.mirror.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err == nil {
		err = storage.Decode(raw, kind, v)
	}
	if err != nil {
		s.logger.Warn("Failed to read session state, using default",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
