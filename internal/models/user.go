package models

import (
	"net/url"
	"strings"
)

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// UserProfile is the signed-in account as shown on the settings screen.
type UserProfile struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Avatar  string  `json:"avatar"`
	Balance float64 `json:"balance"`

	Bio                string `json:"bio,omitempty"`
	Country            string `json:"country,omitempty"`
	SubscriptionExpiry int64  `json:"subscriptionExpiry,omitempty"` // unix millis, 0 = none
	OnlineSeconds      int64  `json:"onlineTime,omitempty"`
}

// NewProfile builds the profile created at sign-in. An empty name falls back
// to the local part of the email.
func NewProfile(name, email string) *UserProfile {
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return &UserProfile{
		Name:   name,
		Email:  email,
		Avatar: avatarBaseURL + url.QueryEscape(email),
	}
}

// ProfilePatch carries the fields of a partial profile update. Nil fields are
// left alone.
type ProfilePatch struct {
	Name               *string
	Email              *string
	Avatar             *string
	Balance            *float64
	Bio                *string
	Country            *string
	SubscriptionExpiry *int64
	OnlineSeconds      *int64
}

// Apply copies the set fields onto u. Range checks are the caller's job.
func (p ProfilePatch) Apply(u *UserProfile) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Balance != nil {
		u.Balance = *p.Balance
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Country != nil {
		u.Country = *p.Country
	}
	if p.SubscriptionExpiry != nil {
		u.SubscriptionExpiry = *p.SubscriptionExpiry
	}
	if p.OnlineSeconds != nil {
		u.OnlineSeconds = *p.OnlineSeconds
	}
}
