package notify

import (
	"context"
	"fmt"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/logger"
	"announcement-radar/internal/storage"
)

// Matcher decides whether a user should receive an announcement.
type Matcher interface {
	Match(ctx context.Context, userID int64, ann *domain.NormalizedAnnouncement) (bool, error)
}

// Publisher receives every dispatched announcement, e.g. a live stream hub.
type Publisher interface {
	Publish(a *domain.Announcement)
}

// DispatchResult counts delivery outcomes.
type DispatchResult struct {
	Sent    int
	Skipped int // already sent
	Failed  int
}

// Dispatcher fans announcements out to matching users.
type Dispatcher struct {
	users     storage.SubscriptionStore
	sent      storage.NotificationStore
	matcher   Matcher
	notifier  Notifier
	publisher Publisher
	log       logger.Logger
}

// NewDispatcher creates a Dispatcher. publisher may be nil.
func NewDispatcher(
	users storage.SubscriptionStore,
	sent storage.NotificationStore,
	matcher Matcher,
	notifier Notifier,
	publisher Publisher,
	log logger.Logger,
) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		users:     users,
		sent:      sent,
		matcher:   matcher,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// Dispatch delivers each announcement to every matching active user, one user
// at a time. Per-user failures are logged and counted. Only a failure to list
// users is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, anns []*domain.Announcement) (DispatchResult, error) {
	var result DispatchResult
	if len(anns) == 0 {
		return result, nil
	}

	users, err := d.users.ListActiveUsers(ctx)
	if err != nil {
		return result, fmt.Errorf("list active users: %w", err)
	}

	for _, ann := range anns {
		if ann == nil {
			continue
		}
		if d.publisher != nil {
			d.publisher.Publish(ann)
		}

		normalized := ann.Normalized()
		for _, u := range users {
			outcome := d.deliver(ctx, u, ann, normalized)
			switch outcome {
			case outcomeSent:
				result.Sent++
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				result.Failed++
			}
		}
	}
	return result, nil
}

type outcome int

const (
	outcomeNoMatch outcome = iota
	outcomeSent
	outcomeSkipped
	outcomeFailed
)

func (d *Dispatcher) deliver(ctx context.Context, u *domain.User, ann *domain.Announcement, normalized *domain.NormalizedAnnouncement) outcome {
	fields := []logger.Field{
		logger.Int64("user_id", u.ID),
		logger.Int64("announcement_id", ann.ID),
	}

	matched, err := d.matcher.Match(ctx, u.ID, normalized)
	if err != nil {
		d.log.Error("subscription match failed", append(fields, logger.Error(err))...)
		return outcomeFailed
	}
	if !matched {
		return outcomeNoMatch
	}

	sent, err := d.sent.HasBeenSent(ctx, u.ID, ann.ID)
	if err != nil {
		d.log.Error("sent check failed", append(fields, logger.Error(err))...)
		return outcomeFailed
	}
	if sent {
		return outcomeSkipped
	}

	ok, err := d.notifier.SendMessageToUser(ctx, u.ExternalID, FormatAnnouncement(ann))
	if err != nil || !ok {
		d.log.Warn("notification not delivered", append(fields, logger.Error(err))...)
		return outcomeFailed
	}

	if _, err := d.sent.MarkSent(ctx, u.ID, ann.ID); err != nil {
		d.log.Error("mark sent failed", append(fields, logger.Error(err))...)
	}
	d.log.Debug("notification sent", fields...)
	return outcomeSent
}
