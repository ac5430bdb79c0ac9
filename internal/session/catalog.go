package session

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/xaenox/pride-prime/internal/models"
	"go.uber.org/zap"
)

const (
	plazaGlobal    = "global"
	anonymousName  = "PrimeCitizen"
	thumbnailURL   = "https://picsum.photos/seed/%s/800/450"
	defaultHubIcon = "#"
)

// UploadVideo adds a video to the signed-in account's list and credits the
// upload bonus.
func (s *Store) UploadVideo(ctx context.Context, title string) (models.Video, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Video{}, ErrEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return models.Video{}, ErrNoUser
	}

	id := s.newID()
	video := models.Video{
		ID:        id,
		Title:     title,
		Thumbnail: fmt.Sprintf(thumbnailURL, id),
		Author:    s.user.Name,
		Views:     "0",
		Timestamp: "Just now",
		Duration:  "0:00",
		Status:    models.VideoActive,
	}
	s.videos = append([]models.Video{video}, s.videos...)
	s.write(ctx, s.accountKey(keyVideos), "videos", s.videos)

	if s.cfg.UploadBonus > 0 {
		s.user.Balance += s.cfg.UploadBonus
		s.write(ctx, keyUser, "user", s.user)
	}

	s.logger.Info("Video uploaded",
		zap.String("video_id", id),
		zap.String("account", s.accountID()))
	return video, nil
}

// Videos returns the signed-in account's uploads, newest first.
func (s *Store) Videos() []models.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Video(nil), s.videos...)
}

func (s *Store) CreateHub(ctx context.Context, name string) (models.Hub, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Hub{}, ErrEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hub := models.Hub{
		ID:        s.newID(),
		Name:      name,
		Icon:      hubIcon(name),
		Owner:     s.accountID(),
		CreatedAt: s.now().UnixMilli(),
	}
	s.hubs = append(s.hubs, hub)
	s.write(ctx, keyHubs, "hubs", s.hubs)
	return hub, nil
}

func (s *Store) Hubs() []models.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Hub(nil), s.hubs...)
}

// PostPlaza appends text to the chat log of the user's region.
func (s *Store) PostPlaza(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	region := s.regionLocked()
	posts := s.plazaLocked(ctx, region)

	sender := anonymousName
	if s.user != nil && s.user.Name != "" {
		sender = s.user.Name
	}
	msg := s.stamp(models.Message{Sender: sender, Content: text})

	posts = append(posts, msg)
	s.plaza[region] = posts
	s.write(ctx, keyPlaza+":"+region, "plaza", posts)
	return msg, nil
}

// Plaza returns the chat log of the user's region, oldest first.
func (s *Store) Plaza(ctx context.Context) (string, []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	region := s.regionLocked()
	return region, append([]models.Message(nil), s.plazaLocked(ctx, region)...)
}

func (s *Store) regionLocked() string {
	if s.user == nil || strings.TrimSpace(s.user.Country) == "" {
		return plazaGlobal
	}
	return strings.ToLower(strings.TrimSpace(s.user.Country))
}

// plazaLocked returns the region log, reading it from the mirror the first
// time the region is seen.
func (s *Store) plazaLocked(ctx context.Context, region string) []models.Message {
	if posts, ok := s.plaza[region]; ok {
		return posts
	}
	var posts []models.Message
	if !s.read(ctx, keyPlaza+":"+region, "plaza", &posts) {
		posts = nil
	}
	s.plaza[region] = posts
	return posts
}

func hubIcon(name string) string {
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return defaultHubIcon
}
