package bot

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/xaenox/pride-prime/internal/models"
	"github.com/xaenox/pride-prime/internal/voice"
)

var errUsage = errors.New("bad command arguments")

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

// parseLogin splits "/login <email> [name...]".
func parseLogin(args string) (email, name string, err error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", "", errUsage
	}
	addr, err := mail.ParseAddress(fields[0])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errUsage, err)
	}
	return strings.ToLower(addr.Address), strings.Join(fields[1:], " "), nil
}

// parseSet turns "/set <field> <value>" into a profile patch.
func parseSet(args string) (models.ProfilePatch, error) {
	field, value, _ := strings.Cut(strings.TrimSpace(args), " ")
	value = strings.TrimSpace(value)
	if value == "" {
		return models.ProfilePatch{}, errUsage
	}

	var patch models.ProfilePatch
	switch strings.ToLower(field) {
	case "name":
		patch.Name = &value
	case "bio":
		patch.Bio = &value
	case "country":
		patch.Country = &value
	case "avatar":
		patch.Avatar = &value
	default:
		return models.ProfilePatch{}, errUsage
	}
	return patch, nil
}

func formatProfile(user models.UserProfile, subscribed bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", escapeMarkdown(user.Name))
	fmt.Fprintf(&sb, "%s\n", escapeMarkdown(user.Email))
	if user.Bio != "" {
		fmt.Fprintf(&sb, "_%s_\n", escapeMarkdown(user.Bio))
	}
	if user.Country != "" {
		fmt.Fprintf(&sb, "📍 %s\n", escapeMarkdown(user.Country))
	}
	fmt.Fprintf(&sb, "\n*Balance:* %s coins\n", escapeMarkdown(fmt.Sprintf("%.2f", user.Balance)))
	fmt.Fprintf(&sb, "*Online:* %s\n", escapeMarkdown(formatOnline(user.OnlineSeconds)))
	if subscribed {
		expiry := time.UnixMilli(user.SubscriptionExpiry).UTC().Format("2006-01-02")
		fmt.Fprintf(&sb, "*Prime:* active until %s\n", escapeMarkdown(expiry))
	}
	return sb.String()
}

func formatThreads(threads []models.Thread, activeID string) string {
	if len(threads) == 0 {
		return escapeMarkdown("You don't have any conversations yet. Just send a message to start one.")
	}

	var sb strings.Builder
	sb.WriteString("*Your conversations:*\n\n")
	for _, t := range threads {
		marker := "  "
		if t.ID == activeID {
			marker = "▶️ "
		}
		fmt.Fprintf(&sb, "%s*%s* \\(%d\\)\n`%s`\n", marker, escapeMarkdown(t.Title), len(t.Messages), t.ID)
	}
	return sb.String()
}

func formatThread(t models.Thread) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n\n", escapeMarkdown(t.Title))
	for _, m := range t.Messages {
		fmt.Fprintf(&sb, "*%s* %s\n%s\n\n", escapeMarkdown(m.Sender), escapeMarkdown(m.Timestamp), escapeMarkdown(m.Content))
	}
	return sb.String()
}

func formatVideos(videos []models.Video) string {
	if len(videos) == 0 {
		return escapeMarkdown("No uploads yet. Try /upload <title>.")
	}
	var sb strings.Builder
	sb.WriteString("*Your videos:*\n")
	for _, v := range videos {
		status := ""
		if v.Status == models.VideoFrozen {
			status = " ❄️"
		}
		fmt.Fprintf(&sb, "• %s%s\n", escapeMarkdown(v.Title), status)
	}
	return sb.String()
}

func formatHubs(hubs []models.Hub) string {
	if len(hubs) == 0 {
		return escapeMarkdown("No hubs yet. Create one with /hub <name>.")
	}
	var sb strings.Builder
	sb.WriteString("*Hubs:*\n")
	for _, h := range hubs {
		fmt.Fprintf(&sb, "%s %s\n", escapeMarkdown("["+h.Icon+"]"), escapeMarkdown(h.Name))
	}
	return sb.String()
}

func formatPlaza(region string, posts []models.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Global Plaza · %s*\n\n", escapeMarkdown(strings.ToUpper(region)))
	if len(posts) == 0 {
		sb.WriteString(escapeMarkdown("Quiet here. Say something with /plaza <text>."))
		return sb.String()
	}
	for _, p := range posts {
		fmt.Fprintf(&sb, "*%s*: %s\n", escapeMarkdown(p.Sender), escapeMarkdown(p.Content))
	}
	return sb.String()
}

func formatOnline(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int64(d / time.Hour)
	m := int64(d % time.Hour / time.Minute)
	return fmt.Sprintf("%dh %02dm", h, m)
}

func formatVoiceTurn(turn voice.Turn) string {
	return fmt.Sprintf("🎙 %s\n\n🦁 %s", turn.Transcript, turn.Reply)
}

func lastMessage(t models.Thread) string {
	if len(t.Messages) == 0 {
		return t.Title
	}
	return t.Messages[len(t.Messages)-1].Content
}

func openClosed(open bool) string {
	if open {
		return "opened"
	}
	return "closed"
}

func joinTabs() string {
	names := make([]string, len(models.Tabs))
	for i, t := range models.Tabs {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
