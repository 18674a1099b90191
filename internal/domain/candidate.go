package domain

import (
	"strings"
	"time"
)

// TokenCandidate is a token identity extracted from an announcement title.
// An empty field means the value is absent.
type TokenCandidate struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// IsEmpty reports whether neither name nor symbol is present.
func (c TokenCandidate) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Symbol) == ""
}

// Token represents a durable token row.
// Corresponds to tokens table in PostgreSQL.
type Token struct {
	ID                  int64     // PRIMARY KEY
	Name                string    // project name (empty when unknown)
	Symbol              string    // ticker, upper case (empty when unknown)
	FirstAnnouncementID int64     // announcement that first mentioned the token
	CreatedAt           time.Time // record creation timestamp
}

// AnnouncementToken links an announcement row to a token row.
// Corresponds to announcement_tokens table in PostgreSQL.
type AnnouncementToken struct {
	AnnouncementID int64
	TokenID        int64
}
