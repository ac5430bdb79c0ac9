package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/pride-prime/internal/models"
	"github.com/xaenox/pride-prime/internal/session"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrBusy is returned while the thread already waits for a reply.
	ErrBusy         = errors.New("assistant: reply already in flight for this thread")
	ErrEmptyMessage = errors.New("assistant: empty message")
)

const DefaultTimeout = 20 * time.Second

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	Burst             int
}

// Exchange is the outcome of one Send.
type Exchange struct {
	ThreadID string
	Reply    string
	Fallback bool
}

// Service runs conversations against a Responder and records both sides in a
// session store.
type Service struct {
	responder Responder
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewService(responder Responder, opts Options, logger *zap.Logger) *Service {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Service{
		responder: responder,
		limiter:   limiter,
		timeout:   timeout,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
}

// NewChat opens a thread seeded with the assistant greeting.
func (s *Service) NewChat(ctx context.Context, store *session.Store) string {
	greeting := models.Message{Sender: AssistantName, Content: Greeting, IsAI: true}
	return store.StartThread(ctx, session.NewThread{Seed: &greeting})
}

// Send posts text to the active thread, creating one if none is active, and
// appends the assistant's reply to that same thread. The reply is written
// even if the user switched threads meanwhile; if the thread was deleted the
// reply is dropped.
func (s *Service) Send(ctx context.Context, store *session.Store, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}

	threadID := store.ActiveThreadID()
	if threadID == "" {
		threadID = store.StartThread(ctx, session.NewThread{FirstText: text})
	}

	if !s.acquire(threadID) {
		return Exchange{ThreadID: threadID}, ErrBusy
	}
	defer s.release(threadID)

	userMsg := models.Message{Sender: UserSender, Content: text}
	if err := store.AppendMessage(ctx, threadID, userMsg); err != nil {
		return Exchange{ThreadID: threadID}, fmt.Errorf("posting message: %w", err)
	}

	reply, fallback := s.Reply(ctx, text)

	aiMsg := models.Message{Sender: AssistantName, Content: reply, IsAI: true}
	if err := store.AppendMessage(ctx, threadID, aiMsg); err != nil {
		s.logger.Warn("Dropping reply for deleted thread",
			zap.String("thread_id", threadID),
			zap.Error(err))
	}

	return Exchange{ThreadID: threadID, Reply: reply, Fallback: fallback}, nil
}

// Reply asks the responder for an answer. It always returns text: failures,
// timeouts and empty answers yield a fallback line and fallback=true.
func (s *Service) Reply(ctx context.Context, text string) (reply string, fallback bool) {
	// Leaving the view must not lose the answer, so caller cancellation is
	// not propagated; the timeout still bounds the call.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Warn("Assistant request not admitted", zap.Error(err))
		return FallbackError, true
	}

	reply, err := s.responder.Respond(ctx, text)
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return FallbackEmpty, true
	case err != nil:
		s.logger.Error("Failed to get assistant response", zap.Error(err))
		return FallbackError, true
	case strings.TrimSpace(reply) == "":
		return FallbackEmpty, true
	}
	return reply, false
}

// Busy reports whether threadID waits for a reply.
func (s *Service) Busy(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[threadID]
	return ok
}

func (s *Service) acquire(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inFlight[threadID]; ok {
		return false
	}
	s.inFlight[threadID] = struct{}{}
	return true
}

func (s *Service) release(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, threadID)
}
