package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/pride-prime/internal/voice"
	"go.uber.org/zap"
)

const maxVoiceBytes = 20 << 20 // Telegram's bot download limit

// synthesizer returns a speech engine that plays into chatID as a voice note,
// or nil when speech output is not configured.
func (b *Bot) synthesizer(chatID int64) voice.Synthesizer {
	if b.voice.NewSynthesizer == nil {
		return nil
	}
	return b.voice.NewSynthesizer(voice.PlayerFunc(func(ctx context.Context, audio io.Reader) error {
		data, err := io.ReadAll(audio)
		if err != nil {
			return fmt.Errorf("reading speech: %w", err)
		}
		// A barge-in that lands while the audio downloads discards it.
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "reply.ogg", Bytes: data})
		if _, err := b.sender.Send(msg); err != nil {
			return fmt.Errorf("sending voice reply: %w", err)
		}
		return nil
	}))
}

func (b *Bot) handleVoice(ctx context.Context, c *chat, message *tgbotapi.Message) {
	if b.voice.Recognizer == nil {
		b.sendMessage(c.id, "Voice input is not available here. Please type your message.")
		return
	}

	audio, err := b.downloadFile(ctx, message.Voice.FileID)
	if err != nil {
		b.logger.Error("Failed to download voice note",
			zap.Error(err),
			zap.Int64("chat_id", c.id))
		b.sendErrorMessage(c.id, "Sorry, I couldn't fetch your voice note.")
		return
	}

	if !c.voiceMode() {
		b.suggestTranscript(ctx, c, audio)
		return
	}

	turn, err := c.sequencer.Turn(ctx, bytes.NewReader(audio))
	switch {
	case errors.Is(err, voice.ErrBusy):
		b.sendMessage(c.id, "Still working on your last voice message...")
		return
	case errors.Is(err, voice.ErrCaptureFailed):
		b.sendMessage(c.id, "I couldn't hear that clearly. Please try again.")
		return
	case err != nil:
		b.logger.Error("Voice turn failed",
			zap.Error(err),
			zap.Int64("chat_id", c.id))
		b.sendErrorMessage(c.id, "Sorry, the voice conversation hit a problem.")
		return
	}

	b.sendMessage(c.id, formatVoiceTurn(turn))
}

// suggestTranscript fills the text box equivalent: the transcript is shown,
// not sent.
func (b *Bot) suggestTranscript(ctx context.Context, c *chat, audio []byte) {
	text, err := b.voice.Recognizer.Transcribe(ctx, bytes.NewReader(audio), b.opts.Speech.Locale)
	if err != nil || text == "" {
		b.logger.Warn("Voice note transcription failed",
			zap.Error(err),
			zap.Int64("chat_id", c.id))
		b.sendMessage(c.id, "I couldn't make out that voice note.")
		return
	}

	msg := tgbotapi.NewMessage(c.id, text)
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, InputFieldPlaceholder: truncate(text, 64)}
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send transcript",
			zap.Error(err),
			zap.Int64("chat_id", c.id))
	}
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	link, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes))
}
