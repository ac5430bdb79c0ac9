package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatActivityWindow(t *testing.T) {
	seen := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c := &chat{id: 42}
	c.touch(seen)

	assert.True(t, c.active(seen.Add(15*time.Minute), 15*time.Minute))
	assert.False(t, c.active(seen.Add(16*time.Minute), 15*time.Minute))
}

func TestChatVoiceMode(t *testing.T) {
	c := &chat{id: 42}
	assert.False(t, c.voiceMode())

	c.setVoice(true)
	assert.True(t, c.voiceMode())

	c.setVoice(false)
	assert.False(t, c.voiceMode())
}
