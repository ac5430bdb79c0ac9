package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/pride-prime/internal/models"
	"github.com/xaenox/pride-prime/internal/session"
	"go.uber.org/zap"
)

const welcome = `Welcome to Pride Prime! 🦁
Chat with Pride AI, keep your conversations, earn coins for time spent online
and share with the Global Plaza.

Sign in with /login <email> [name] and just send me a message to start.
Use /help to see all available commands.`

const help = `Available commands:
/start - Start the bot
/help - Show this help message
/login <email> [name] - Sign in
/logout - Sign out (your chats stay saved)
/profile - Show your profile
/set <field> <value> - Change name, bio, country or avatar
/tab <name> - Switch section
/sidebar - Toggle the sidebar
/newchat - Start a new conversation
/threads - List your conversations
/use <id> - Open a conversation
/delete <id> - Delete a conversation
/balance - Show your coins
/subscribe - Buy Prime premium
/upload <title> - Upload a video
/videos - List your videos
/hub <name> - Create a hub
/hubs - List hubs
/plaza [text] - Read or post to the Global Plaza
/voice - Talk to Pride AI with voice notes
/stopvoice - Back to text replies

Any other text goes to Pride AI.`

func (b *Bot) handleCommand(ctx context.Context, c *chat, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.sendMessage(c.id, welcome)
	case "help":
		b.sendMessage(c.id, help)
	case "login":
		b.handleLogin(ctx, c, args)
	case "logout":
		c.store.SetUser(ctx, nil)
		b.sendMessage(c.id, "Signed out. Your conversations are kept for next time.")
	case "profile":
		b.handleProfile(c)
	case "set":
		b.handleSet(ctx, c, args)
	case "tab":
		b.handleTab(ctx, c, args)
	case "sidebar":
		open := !c.store.UI().SidebarOpen
		c.store.SetSidebarOpen(ctx, open)
		b.sendMessage(c.id, fmt.Sprintf("Sidebar %s.", openClosed(open)))
	case "newchat":
		id := b.assistant.NewChat(ctx, c.store)
		thread, _ := c.store.Thread(id)
		b.sendMessage(c.id, lastMessage(thread))
	case "threads":
		b.sendMarkdown(c.id, formatThreads(c.store.Threads(), c.store.ActiveThreadID()))
	case "use":
		b.handleUse(ctx, c, args)
	case "delete":
		b.handleDelete(ctx, c, args)
	case "balance":
		b.handleBalance(c)
	case "subscribe":
		b.handleSubscribe(ctx, c)
	case "upload":
		b.handleUpload(ctx, c, args)
	case "videos":
		b.sendMarkdown(c.id, formatVideos(c.store.Videos()))
	case "hub":
		b.handleHub(ctx, c, args)
	case "hubs":
		b.sendMarkdown(c.id, formatHubs(c.store.Hubs()))
	case "plaza":
		b.handlePlaza(ctx, c, args)
	case "voice":
		b.handleVoiceMode(c, true)
	case "stopvoice":
		b.handleVoiceMode(c, false)
	default:
		b.sendMessage(c.id, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleLogin(ctx context.Context, c *chat, args string) {
	email, name, err := parseLogin(args)
	if err != nil {
		b.sendMessage(c.id, "Usage: /login <email> [name]")
		return
	}

	c.store.SetUser(ctx, models.NewProfile(name, email))
	user, _ := c.store.User()
	b.logger.Info("User signed in",
		zap.Int64("chat_id", c.id),
		zap.String("email", user.Email))
	b.sendMessage(c.id, fmt.Sprintf("Welcome, %s! You have %d saved conversations.", user.Name, len(c.store.Threads())))
}

func (b *Bot) handleProfile(c *chat) {
	user, ok := c.store.User()
	if !ok {
		b.sendMessage(c.id, "You are browsing as a guest. Use /login to sign in.")
		return
	}
	b.sendMarkdown(c.id, formatProfile(user, c.store.Subscribed()))
}

func (b *Bot) handleSet(ctx context.Context, c *chat, args string) {
	patch, err := parseSet(args)
	if err != nil {
		b.sendMessage(c.id, "Usage: /set <name|bio|country|avatar> <value>")
		return
	}
	user, err := c.store.UpdateUser(ctx, patch)
	switch {
	case errors.Is(err, session.ErrNoUser):
		b.sendMessage(c.id, "Sign in first with /login.")
	case err != nil:
		b.logger.Warn("Profile update rejected", zap.Error(err), zap.Int64("chat_id", c.id))
		b.sendErrorMessage(c.id, "Sorry, that change couldn't be saved.")
	default:
		b.sendMarkdown(c.id, formatProfile(user, c.store.Subscribed()))
	}
}

func (b *Bot) handleTab(ctx context.Context, c *chat, args string) {
	if err := c.store.SetActiveTab(ctx, models.Tab(strings.ToLower(args))); err != nil {
		b.sendMessage(c.id, "Unknown section. Choose one of: "+joinTabs())
		return
	}
	b.sendMessage(c.id, "Switched to "+strings.ToLower(args)+".")
}

func (b *Bot) handleUse(ctx context.Context, c *chat, args string) {
	if args == "" {
		b.sendMessage(c.id, "Usage: /use <id>")
		return
	}
	if err := c.store.SetActiveThread(ctx, args); err != nil {
		b.sendMessage(c.id, "No conversation with that id. Use /threads to list them.")
		return
	}
	thread, _ := c.store.Thread(args)
	b.sendMarkdown(c.id, formatThread(thread))
}

func (b *Bot) handleDelete(ctx context.Context, c *chat, args string) {
	if args == "" {
		b.sendMessage(c.id, "Usage: /delete <id>")
		return
	}
	if _, err := c.store.Thread(args); err != nil {
		b.sendMessage(c.id, "No conversation with that id. Use /threads to list them.")
		return
	}
	c.store.DeleteThread(ctx, args)
	b.sendMessage(c.id, "Conversation deleted.")
}

func (b *Bot) handleBalance(c *chat) {
	user, ok := c.store.User()
	if !ok {
		b.sendMessage(c.id, "Sign in first with /login.")
		return
	}
	b.sendMessage(c.id, fmt.Sprintf("You have %.2f coins. Online for %s.", user.Balance, formatOnline(user.OnlineSeconds)))
}

func (b *Bot) handleSubscribe(ctx context.Context, c *chat) {
	user, err := c.store.Subscribe(ctx, b.opts.SubscriptionCost, b.opts.SubscriptionPeriod)
	switch {
	case errors.Is(err, session.ErrNoUser):
		b.sendMessage(c.id, "Sign in first with /login.")
	case errors.Is(err, session.ErrInsufficientFunds):
		b.sendMessage(c.id, fmt.Sprintf("Prime costs %.2f coins, you have %.2f.", b.opts.SubscriptionCost, user.Balance))
	case err != nil:
		b.logger.Error("Subscription failed", zap.Error(err), zap.Int64("chat_id", c.id))
		b.sendErrorMessage(c.id, "Sorry, the subscription failed.")
	default:
		b.sendMarkdown(c.id, formatProfile(user, true))
	}
}

func (b *Bot) handleUpload(ctx context.Context, c *chat, args string) {
	video, err := c.store.UploadVideo(ctx, args)
	switch {
	case errors.Is(err, session.ErrEmpty):
		b.sendMessage(c.id, "Usage: /upload <title>")
	case errors.Is(err, session.ErrNoUser):
		b.sendMessage(c.id, "Sign in first with /login.")
	case err != nil:
		b.sendErrorMessage(c.id, "Sorry, the upload failed.")
	default:
		b.sendMessage(c.id, fmt.Sprintf("Uploaded %q. +%.0f coin!", video.Title, b.opts.Session.UploadBonus))
	}
}

func (b *Bot) handleHub(ctx context.Context, c *chat, args string) {
	hub, err := c.store.CreateHub(ctx, args)
	if err != nil {
		b.sendMessage(c.id, "Usage: /hub <name>")
		return
	}
	b.sendMessage(c.id, fmt.Sprintf("[%s] %s is live.", hub.Icon, hub.Name))
}

func (b *Bot) handlePlaza(ctx context.Context, c *chat, args string) {
	if args != "" {
		if _, err := c.store.PostPlaza(ctx, args); err != nil {
			b.sendErrorMessage(c.id, "Sorry, your post didn't go through.")
			return
		}
	}
	region, posts := c.store.Plaza(ctx)
	b.sendMarkdown(c.id, formatPlaza(region, posts))
}

func (b *Bot) handleVoiceMode(c *chat, on bool) {
	if on && b.voice.Recognizer == nil {
		b.sendMessage(c.id, "Voice conversations are not available here.")
		return
	}
	c.setVoice(on)
	if !on {
		c.sequencer.Stop()
		b.sendMessage(c.id, "Voice mode off.")
		return
	}
	b.sendMessage(c.id, "Voice mode on. Send me a voice note and Pride AI will answer out loud.")
}
