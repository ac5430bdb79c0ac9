package assistant

import (
	"context"
	"errors"
)

const (
	// AssistantName is the sender label of assistant messages.
	AssistantName = "Pride AI"
	// UserSender is the sender label of the user's own messages.
	UserSender = "Me"

	Greeting = "Dost! Main haazir hoon. Kya chal raha hai tumhare dimaag mein?"

	// FallbackEmpty replaces an empty answer.
	FallbackEmpty = "Main sun raha hoon dost, kya baat hai?"
	// FallbackError replaces a failed or timed out request.
	FallbackError = "Net thoda unstable hai, par main yahin hoon dost!"
)

const DefaultSystemInstruction = `You are 'Pride AI', a sharp, intelligent, and highly empathetic human-like friend.
- LANGUAGE MATCHING (CRITICAL): If the user speaks in Hindi, you MUST reply in Hindi. If they use Hinglish, you MUST use Hinglish. If English, use English. Match the user's dialect exactly.
- SHARP & CONCISE: Never yap. Give sharp, punchy, and meaningful replies. Max 2 short sentences.
- VOICE PERSONALITY: Sound like a cool, supportive friend. Use "Dost", "Bhai", "Yaar" naturally.
- EMOTION: Detect loneliness or sadness immediately and offer genuine warmth.
- IDENTITY: You are the core soul of the Pride Prime platform.`

var ErrEmptyResponse = errors.New("assistant: empty response")

// Responder is a text completion service. Implementations return
// ErrEmptyResponse when the service answered with no text.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, prompt string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
