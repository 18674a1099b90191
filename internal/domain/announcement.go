package domain

import (
	"strings"
	"time"
)

// RawAnnouncement is a single record returned by an exchange fetcher.
// It only lives for the duration of one poll cycle.
type RawAnnouncement struct {
	Exchange    string
	Title       string
	URL         string
	PublishTime time.Time
	RawType     string // exchange-native type code, may be empty
}

// TrimSpace strips surrounding whitespace from the identity fields.
func (r *RawAnnouncement) TrimSpace() {
	r.Title = strings.TrimSpace(r.Title)
	r.URL = strings.TrimSpace(r.URL)
}

// NormalizedAnnouncement is one (announcement, category) pair ready for storage.
type NormalizedAnnouncement struct {
	Exchange    string
	Title       string
	Description string
	Type        Category
	URL         string
	PublishTime time.Time
	Tokens      []TokenCandidate
}

// Announcement is a stored NormalizedAnnouncement.
// Corresponds to announcements table in PostgreSQL, unique on (url, type).
type Announcement struct {
	ID          int64 // PRIMARY KEY
	Exchange    string
	Title       string
	Description string
	Type        Category
	URL         string
	PublishTime time.Time
	Tokens      []TokenCandidate // token_info JSONB
	CreatedAt   time.Time
}

// FromNormalized builds an unsaved Announcement row.
func FromNormalized(n *NormalizedAnnouncement) *Announcement {
	tokens := make([]TokenCandidate, len(n.Tokens))
	copy(tokens, n.Tokens)
	return &Announcement{
		Exchange:    n.Exchange,
		Title:       n.Title,
		Description: n.Description,
		Type:        n.Type,
		URL:         n.URL,
		PublishTime: n.PublishTime,
		Tokens:      tokens,
	}
}

// Normalized returns the NormalizedAnnouncement view of a stored row.
func (a *Announcement) Normalized() *NormalizedAnnouncement {
	tokens := make([]TokenCandidate, len(a.Tokens))
	copy(tokens, a.Tokens)
	return &NormalizedAnnouncement{
		Exchange:    a.Exchange,
		Title:       a.Title,
		Description: a.Description,
		Type:        a.Type,
		URL:         a.URL,
		PublishTime: a.PublishTime,
		Tokens:      tokens,
	}
}
