package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Listening
	Processing
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrBusy               = errors.New("voice: a turn is already running")
	ErrCaptureUnsupported = errors.New("voice: speech input is not available")
	ErrCaptureFailed      = errors.New("voice: speech was not recognized")
)

// DefaultLocale is the recognition and playback locale used when none is configured.
const DefaultLocale = "hi-IN"

type SpeechOptions struct {
	Locale string
	Voice  string
}

// Recognizer turns captured audio into a single final transcript.
type Recognizer interface {
	Transcribe(ctx context.Context, audio io.Reader, locale string) (string, error)
}

// Synthesizer plays text aloud. Speak returns when playback ends or ctx is
// cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string, opts SpeechOptions) error
}

// Submitter sends a transcript as a chat message and returns the reply.
type Submitter interface {
	Submit(ctx context.Context, text string) (string, error)
}

type SubmitterFunc func(ctx context.Context, text string) (string, error)

func (f SubmitterFunc) Submit(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Turn is the result of one voice exchange.
type Turn struct {
	Transcript string
	Reply      string
}

// Sequencer runs voice turns one at a time: Idle, Listening, Processing,
// Speaking, then Idle again. Every state change goes through the mutex, and
// each change cancels the playback left over from the previous state.
type Sequencer struct {
	recognizer  Recognizer
	synthesizer Synthesizer
	submitter   Submitter
	opts        SpeechOptions
	logger      *zap.Logger

	mu         sync.Mutex
	state      State
	gen        uint64
	stopSpeech context.CancelFunc
	speechDone chan struct{}
}

func NewSequencer(recognizer Recognizer, synthesizer Synthesizer, submitter Submitter, opts SpeechOptions, logger *zap.Logger) *Sequencer {
	if opts.Locale == "" {
		opts.Locale = DefaultLocale
	}
	return &Sequencer{
		recognizer:  recognizer,
		synthesizer: synthesizer,
		submitter:   submitter,
		opts:        opts,
		logger:      logger,
	}
}

func (q *Sequencer) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Turn transcribes audio, submits the transcript and starts speaking the
// reply. It returns once playback has started; playback continues in the
// background until it ends, Stop is called or the next Turn begins.
func (q *Sequencer) Turn(ctx context.Context, audio io.Reader) (Turn, error) {
	if q.recognizer == nil {
		return Turn{}, ErrCaptureUnsupported
	}

	q.mu.Lock()
	if q.state == Listening || q.state == Processing {
		q.mu.Unlock()
		return Turn{}, ErrBusy
	}
	done := q.cancelSpeechLocked()
	q.gen++
	gen := q.gen
	q.state = Listening
	q.mu.Unlock()

	// Never overlap the old reply with the new capture.
	if done != nil {
		<-done
	}

	text, err := q.recognizer.Transcribe(ctx, audio, q.opts.Locale)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		q.transition(gen, Idle)
		if err == nil {
			err = errors.New("empty transcript")
		}
		q.logger.Info("Voice capture failed", zap.Error(err))
		return Turn{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	if !q.transition(gen, Processing) {
		return Turn{Transcript: text}, nil
	}

	reply, err := q.submitter.Submit(ctx, text)
	if err != nil {
		q.transition(gen, Idle)
		return Turn{Transcript: text}, fmt.Errorf("submitting transcript: %w", err)
	}

	q.speak(ctx, gen, reply)
	return Turn{Transcript: text, Reply: reply}, nil
}

// Stop leaves voice mode: playback is cancelled and the sequencer is Idle
// when Stop returns. A turn stopped while listening is dropped; one already
// waiting on its reply finishes without speaking.
func (q *Sequencer) Stop() {
	q.mu.Lock()
	done := q.cancelSpeechLocked()
	q.gen++
	q.state = Idle
	q.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (q *Sequencer) speak(ctx context.Context, gen uint64, text string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gen != gen {
		return
	}
	if q.synthesizer == nil {
		q.state = Idle
		return
	}

	speechCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	q.state = Speaking
	q.stopSpeech = cancel
	q.speechDone = done

	go func() {
		defer close(done)
		defer cancel()

		if err := q.synthesizer.Speak(speechCtx, text, q.opts); err != nil && !errors.Is(err, context.Canceled) {
			q.logger.Warn("Speech playback failed", zap.Error(err))
		}

		q.mu.Lock()
		if q.gen == gen && q.state == Speaking {
			q.state = Idle
			q.stopSpeech = nil
			q.speechDone = nil
		}
		q.mu.Unlock()
	}()
}

// transition moves to next if gen is still the current turn.
func (q *Sequencer) transition(gen uint64, next State) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gen != gen {
		return false
	}
	q.state = next
	return true
}

func (q *Sequencer) cancelSpeechLocked() chan struct{} {
	done := q.speechDone
	if q.stopSpeech != nil {
		q.stopSpeech()
	}
	q.stopSpeech = nil
	q.speechDone = nil
	return done
}
