package models

type VideoStatus string

const (
	VideoActive VideoStatus = "active"
	VideoFrozen VideoStatus = "frozen"
)

// Video is an entry of an account's upload list.
type Video struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Author    string      `json:"author"`
	Views     string      `json:"views"`
	Timestamp string      `json:"timestamp"`
	Duration  string      `json:"duration"`
	IsAd      bool        `json:"isAd,omitempty"`
	Status    VideoStatus `json:"status"`
}

// Hub is a community server.
type Hub struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Owner     string `json:"owner,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}
