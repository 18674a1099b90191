package domain

import "time"

// User is a chat user known to the bot.
// Corresponds to users table in PostgreSQL.
type User struct {
	ID         int64
	ExternalID int64 // chat id on the messaging platform
	Username   string
	IsActive   bool
	CreatedAt  time.Time
}

// Subscription is a user's notification filter.
// Corresponds to subscriptions table in PostgreSQL.
type Subscription struct {
	ID               int64
	UserID           int64
	Exchange         string // exchange name or All
	AnnouncementType string // category or All
	TokenFilter      string // comma separated symbols or names, empty for none
	IsActive         bool
	CreatedAt        time.Time
}

// SentNotification records a delivered (user, announcement) pair.
// Corresponds to sent_notifications table in PostgreSQL.
type SentNotification struct {
	UserID         int64
	AnnouncementID int64
	SentAt         time.Time
}
