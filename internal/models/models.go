package models

// Message is one line of a conversation. It is never modified after creation.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	IsAI      bool   `json:"isAi,omitempty"`
}

// Thread represents an AI assistant conversation thread
type Thread struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	LastUpdated int64     `json:"lastUpdated"` // unix millis
}

// Clone returns a copy that shares no slice memory with t.
func (t Thread) Clone() Thread {
	out := t
	out.Messages = append([]Message(nil), t.Messages...)
	return out
}

type Tab string

const (
	TabHome     Tab = "home"
	TabReels    Tab = "reels"
	TabTrending Tab = "trending"
	TabAIChat   Tab = "aichat"
	TabGlobal   Tab = "global"
	TabServers  Tab = "servers"
	TabSettings Tab = "settings"
)

// Tabs lists every navigation target in sidebar order.
var Tabs = []Tab{TabHome, TabReels, TabTrending, TabAIChat, TabGlobal, TabServers, TabSettings}

func (t Tab) Valid() bool {
	for _, known := range Tabs {
		if t == known {
			return true
		}
	}
	return false
}

// UIState is the navigation state restored on reload.
type UIState struct {
	Tab            Tab    `json:"tab"`
	SidebarOpen    bool   `json:"sidebarOpen"`
	ActiveThreadID string `json:"activeThreadId,omitempty"`
}
