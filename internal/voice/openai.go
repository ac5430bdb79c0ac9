package voice

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// WhisperRecognizer transcribes audio with OpenAI's transcription endpoint.
type WhisperRecognizer struct {
	client *openai.Client
	model  string
}

func NewWhisperRecognizer(client *openai.Client, model string) *WhisperRecognizer {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperRecognizer{client: client, model: model}
}

func (r *WhisperRecognizer) Transcribe(ctx context.Context, audio io.Reader, locale string) (string, error) {
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: r.model,
		// The file name only tells the API which container the bytes are in.
		FilePath: "voice.ogg",
		Reader:   audio,
		Language: language(locale),
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

// Player outputs synthesized audio, e.g. by sending it as a voice note.
type Player interface {
	Play(ctx context.Context, audio io.Reader) error
}

type PlayerFunc func(ctx context.Context, audio io.Reader) error

func (f PlayerFunc) Play(ctx context.Context, audio io.Reader) error {
	return f(ctx, audio)
}

// OpenAISynthesizer renders speech with OpenAI's TTS endpoint and hands the
// opus stream to a Player.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	player Player
}

func NewOpenAISynthesizer(client *openai.Client, model string, player Player) *OpenAISynthesizer {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISynthesizer{client: client, model: model, player: player}
}

func (s *OpenAISynthesizer) Speak(ctx context.Context, text string, opts SpeechOptions) error {
	voice := opts.Voice
	if voice == "" {
		voice = string(openai.VoiceNova)
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatOpus,
	})
	if err != nil {
		return fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Close()

	return s.player.Play(ctx, resp)
}

// language maps a locale such as "hi-IN" to the ISO-639-1 code Whisper takes.
func language(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	return strings.ToLower(lang)
}
