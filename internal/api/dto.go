package api

import (
	"time"

	"announcement-radar/internal/domain"
)

// AnnouncementResponse is the JSON view of a stored announcement.
type AnnouncementResponse struct {
	ID          int64                   `json:"id"`
	Exchange    string                  `json:"exchange"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	Type        string                  `json:"type"`
	URL         string                  `json:"url"`
	PublishTime time.Time               `json:"publish_time"`
	Tokens      []domain.TokenCandidate `json:"tokens"`
}

func toAnnouncementResponse(a *domain.Announcement) AnnouncementResponse {
	tokens := a.Tokens
	if tokens == nil {
		tokens = []domain.TokenCandidate{}
	}
	return AnnouncementResponse{
		ID:          a.ID,
		Exchange:    a.Exchange,
		Title:       a.Title,
		Description: a.Description,
		Type:        a.Type.String(),
		URL:         a.URL,
		PublishTime: a.PublishTime,
		Tokens:      tokens,
	}
}

// StreamMessage is one websocket frame.
type StreamMessage struct {
	Type    string               `json:"type"`
	Payload AnnouncementResponse `json:"payload"`
}
