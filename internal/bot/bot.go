package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/pride-prime/internal/assistant"
	"github.com/xaenox/pride-prime/internal/session"
	"github.com/xaenox/pride-prime/internal/storage"
	"github.com/xaenox/pride-prime/internal/voice"
	"go.uber.org/zap"
)

type Options struct {
	PollTimeout  int
	TickInterval time.Duration
	// IdleAfter stops online-time accrual for chats quiet longer than this.
	IdleAfter time.Duration

	Session            session.Config
	SubscriptionCost   float64
	SubscriptionPeriod time.Duration
	Speech             voice.SpeechOptions
}

// Voice bundles the speech engines. A nil Recognizer disables voice notes;
// a nil NewSynthesizer makes voice turns reply in text only.
type Voice struct {
	Recognizer     voice.Recognizer
	NewSynthesizer func(voice.Player) voice.Synthesizer
}

// sender is the part of the Telegram client that delivers messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot drives one session store per Telegram chat.
type Bot struct {
	api       *tgbotapi.BotAPI
	sender    sender
	storage   storage.Storage
	assistant *assistant.Service
	voice     Voice
	opts      Options
	logger    *zap.Logger

	mu    sync.Mutex
	chats map[int64]*chat
}

// chat is the per-chat equivalent of one browser install.
type chat struct {
	id        int64
	store     *session.Store
	sequencer *voice.Sequencer

	mu       sync.Mutex
	voiceOn  bool
	lastSeen time.Time
}

func New(token string, storage storage.Storage, service *assistant.Service, v Voice, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = 15 * time.Minute
	}

	logger.Info("Authorized on account", zap.String("username", api.Self.UserName))

	return &Bot{
		api:       api,
		sender:    api,
		storage:   storage,
		assistant: service,
		voice:     v,
		opts:      opts,
		logger:    logger,
		chats:     make(map[int64]*chat),
	}, nil
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeout

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.stopVoices()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) chat(ctx context.Context, chatID int64) *chat {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.chats[chatID]; ok {
		return c
	}

	logger := b.logger.With(zap.Int64("chat_id", chatID))
	store := session.New(storage.WithPrefix(b.storage, fmt.Sprintf("tg:%d:", chatID)), b.opts.Session, logger)
	store.LoadInitialState(ctx)

	c := &chat{id: chatID, store: store}
	c.sequencer = voice.NewSequencer(b.voice.Recognizer, b.synthesizer(chatID), b.submitter(store), b.opts.Speech, logger)
	b.chats[chatID] = c
	return c
}

func (b *Bot) submitter(store *session.Store) voice.Submitter {
	return voice.SubmitterFunc(func(ctx context.Context, text string) (string, error) {
		ex, err := b.assistant.Send(ctx, store, text)
		if err != nil {
			return "", err
		}
		return ex.Reply, nil
	})
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	c := b.chat(ctx, message.Chat.ID)
	c.touch(time.Now())

	if message.IsCommand() {
		b.handleCommand(ctx, c, message)
		return
	}

	if message.Voice != nil {
		b.handleVoice(ctx, c, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}
	b.handleChat(ctx, c, message, content)
}

func (b *Bot) handleChat(ctx context.Context, c *chat, message *tgbotapi.Message, text string) {
	ex, err := b.assistant.Send(ctx, c.store, text)
	switch {
	case errors.Is(err, assistant.ErrBusy):
		b.sendMessage(c.id, "Pride AI is still answering your last message. One moment!")
		return
	case err != nil:
		b.logger.Error("Failed to send chat message",
			zap.Error(err),
			zap.Int64("chat_id", c.id))
		b.sendErrorMessage(c.id, "Sorry, I couldn't post your message. Please try again.")
		return
	}

	msg := tgbotapi.NewMessage(c.id, ex.Reply)
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send assistant reply",
			zap.Error(err),
			zap.Int64("chat_id", c.id),
			zap.String("thread_id", ex.ThreadID))
	}
}

func (b *Bot) stopVoices() {
	b.mu.Lock()
	chats := make([]*chat, 0, len(b.chats))
	for _, c := range b.chats {
		chats = append(chats, c)
	}
	b.mu.Unlock()

	for _, c := range chats {
		c.sequencer.Stop()
	}
}

func (c *chat) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = now
}

func (c *chat) active(now time.Time, idleAfter time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen) <= idleAfter
}

func (c *chat) setVoice(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voiceOn = on
}

func (c *chat) voiceMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceOn
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
