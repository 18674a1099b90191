// Package orchestrator runs poll cycles.
// It coordinates: fetch → dedup → classify → persist → notify
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"announcement-radar/internal/classifier"
	"announcement-radar/internal/dedup"
	"announcement-radar/internal/domain"
	"announcement-radar/internal/fetcher"
	"announcement-radar/internal/logger"
	"announcement-radar/internal/notify"
	"announcement-radar/internal/observability"
	"announcement-radar/internal/storage"
)

const (
	// DefaultPages is the number of list pages fetched per exchange.
	DefaultPages = 1

	// DefaultClassifyInterval spaces consecutive classification calls.
	DefaultClassifyInterval = time.Second

	// DrainTimeout bounds the audit write and dispatch at the end of a cycle.
	// Both run detached from the caller's context.
	DrainTimeout = 30 * time.Second
)

// Normalizer turns a raw announcement into storable records.
type Normalizer interface {
	Normalize(ctx context.Context, raw *domain.RawAnnouncement) ([]*domain.NormalizedAnnouncement, *domain.Classification, error)
	Fallback(raw *domain.RawAnnouncement) *domain.NormalizedAnnouncement
}

// Dispatcher delivers newly inserted announcements.
type Dispatcher interface {
	Dispatch(ctx context.Context, anns []*domain.Announcement) (notify.DispatchResult, error)
}

// Orchestrator coordinates poll cycle execution.
type Orchestrator struct {
	fetchers          []fetcher.Fetcher
	pages             int
	normalizer        Normalizer
	announcementStore storage.AnnouncementStore
	tokenStore        storage.TokenStore
	classLogStore     storage.ClassificationLogStore
	dispatcher        Dispatcher
	limiter           *rate.Limiter
	metrics           *observability.Metrics
	log               logger.Logger

	mu     sync.Mutex
	status Status
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Fetchers          []fetcher.Fetcher
	Normalizer        Normalizer
	AnnouncementStore storage.AnnouncementStore
	TokenStore        storage.TokenStore

	// Optional
	ClassificationLogStore storage.ClassificationLogStore
	Dispatcher             Dispatcher
	Pages                  int           // pages per exchange, default DefaultPages
	ClassifyInterval       time.Duration // negative disables spacing
	Metrics                *observability.Metrics
	Logger                 logger.Logger
}

// Status describes the most recent cycles.
type Status struct {
	Running        int                 `json:"running"`
	Cycles         int64               `json:"cycles"`
	Failures       int64               `json:"failures"`
	LastRunID      string              `json:"last_run_id,omitempty"`
	LastStartedAt  time.Time           `json:"last_started_at,omitempty"`
	LastFinishedAt time.Time           `json:"last_finished_at,omitempty"`
	LastError      string              `json:"last_error,omitempty"`
	LastResult     *domain.CycleResult `json:"last_result,omitempty"`
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	pages := opts.Pages
	if pages <= 0 {
		pages = DefaultPages
	}

	interval := opts.ClassifyInterval
	if interval == 0 {
		interval = DefaultClassifyInterval
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Orchestrator{
		fetchers:          opts.Fetchers,
		pages:             pages,
		normalizer:        opts.Normalizer,
		announcementStore: opts.AnnouncementStore,
		tokenStore:        opts.TokenStore,
		classLogStore:     opts.ClassificationLogStore,
		dispatcher:        opts.Dispatcher,
		limiter:           rate.NewLimiter(limit, 1),
		metrics:           opts.Metrics,
		log:               log,
	}
}

// Status returns a snapshot of cycle statistics.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.status
	if s.LastResult != nil {
		r := *s.LastResult
		s.LastResult = &r
	}
	return s
}

// RunCycle executes one poll cycle.
// Phases:
//  1. Fetch every exchange concurrently
//  2. Drop raws already seen
//  3. Classify and normalize each remaining raw
//  4. Admit records and link their tokens
//  5. Append the classification audit log
//  6. Notify subscribers of inserted announcements
//
// Only configuration errors, seen-set loading failures and cancellation stop
// classification early. Phases 5 and 6 still run for the rows admitted so far,
// then the error is returned. Overlapping calls are allowed.
func (o *Orchestrator) RunCycle(ctx context.Context) (*domain.CycleResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := o.log.With(logger.String("run_id", runID))

	o.begin(runID, started)
	log.Info("poll cycle started", logger.Int("fetchers", len(o.fetchers)))

	result, err := o.runCycle(ctx, runID, log)
	if result != nil {
		result.Duration = time.Since(started)
	}
	o.finish(result, err)

	if err != nil {
		o.metrics.RecordCycle("error", time.Since(started))
		fields := []logger.Field{logger.Error(err)}
		if result != nil {
			fields = append(fields,
				logger.Int("inserted", result.Inserted),
				logger.Int("notifications_sent", result.NotificationsSent),
			)
		}
		log.Error("poll cycle failed", fields...)
		return nil, err
	}

	o.metrics.RecordCycle("success", result.Duration)
	log.Info("poll cycle completed",
		logger.Int("fetched", result.Fetched),
		logger.Int("skipped_seen", result.SkippedSeen),
		logger.Int("classified", result.Classified),
		logger.Int("classify_failed", result.ClassifyFailed),
		logger.Int("inserted", result.Inserted),
		logger.Int("duplicates", result.Duplicates),
		logger.Int("tokens_linked", result.TokensLinked),
		logger.Int("notifications_sent", result.NotificationsSent),
		logger.Duration("duration", result.Duration),
	)
	return result, nil
}

func (o *Orchestrator) runCycle(ctx context.Context, runID string, log logger.Logger) (*domain.CycleResult, error) {
	result := &domain.CycleResult{RunID: runID}

	// Phase 1: Fetch
	raws := o.fetchAll(ctx, log)
	result.Fetched = len(raws)

	// Phase 2: Dedup pre-check
	gate := dedup.NewGate(o.announcementStore)
	if err := gate.Load(ctx); err != nil {
		return nil, fmt.Errorf("load seen announcements: %w", err)
	}
	unseen := gate.FilterUnseen(raws)
	result.SkippedSeen = len(raws) - len(unseen)
	o.metrics.RecordSkippedSeen(result.SkippedSeen)

	// Phases 3-4: Classify, normalize and persist. Once a raw is classified
	// its rows are persisted even if ctx is cancelled meanwhile.
	persistCtx := context.WithoutCancel(ctx)
	var (
		fresh    []*domain.Announcement
		abortErr error
	)
	audit := make([]*domain.ClassificationRecord, 0, len(unseen))
	for _, raw := range unseen {
		if err := o.limiter.Wait(ctx); err != nil {
			abortErr = fmt.Errorf("wait for classification slot: %w", err)
			break
		}

		records, record, err := o.classify(ctx, runID, raw)
		audit = append(audit, record)
		if err != nil {
			if errors.Is(err, classifier.ErrConfiguration) {
				abortErr = fmt.Errorf("classify %q: %w", raw.Title, err)
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				abortErr = ctxErr
				break
			}
			log.Warn("classification failed, storing as uncategorized",
				logger.String("exchange", raw.Exchange),
				logger.String("title", raw.Title),
				logger.Error(err),
			)
			result.ClassifyFailed++
			records = []*domain.NormalizedAnnouncement{o.normalizer.Fallback(raw)}
		} else {
			result.Classified++
		}

		for _, n := range records {
			row, inserted, err := gate.Admit(persistCtx, n)
			if err != nil {
				o.metrics.RecordPersistenceError("announcement")
				log.Error("persist announcement failed",
					logger.String("url", n.URL),
					logger.String("type", n.Type.String()),
					logger.Error(err),
				)
				continue
			}
			o.metrics.RecordInsert(n.Type.String(), inserted)
			if !inserted {
				result.Duplicates++
				continue
			}
			result.Inserted++
			result.TokensLinked += o.linkTokens(persistCtx, log, row, n.Tokens)
			fresh = append(fresh, row)
		}
		gate.MarkSeen(raw.URL, raw.Title)
	}

	// Phases 5-6 run even after an abort: admitted rows are already seen.
	drainCtx, cancel := context.WithTimeout(persistCtx, DrainTimeout)
	defer cancel()

	// Phase 5: Audit log
	if o.classLogStore != nil && len(audit) > 0 {
		if err := o.classLogStore.InsertBulk(drainCtx, audit); err != nil {
			o.metrics.RecordPersistenceError("classification_log")
			log.Warn("write classification log failed", logger.Int("records", len(audit)), logger.Error(err))
		}
	}

	// Phase 6: Notify
	if o.dispatcher != nil && len(fresh) > 0 {
		dispatched, err := o.dispatcher.Dispatch(drainCtx, fresh)
		if err != nil {
			log.Error("dispatch notifications failed", logger.Error(err))
		}
		result.NotificationsSent = dispatched.Sent
		result.NotificationsFailed = dispatched.Failed
		o.metrics.RecordNotifications(dispatched.Sent, dispatched.Skipped, dispatched.Failed)
	}

	if abortErr != nil {
		return result, abortErr
	}
	return result, nil
}

// fetchAll fetches pages 1..N of every exchange. Exchanges run concurrently,
// pages of one exchange run in order. A failed page ends that exchange's fetch.
func (o *Orchestrator) fetchAll(ctx context.Context, log logger.Logger) []*domain.RawAnnouncement {
	batches := make([][]*domain.RawAnnouncement, len(o.fetchers))

	var wg sync.WaitGroup
	for i, f := range o.fetchers {
		wg.Add(1)
		go func(i int, f fetcher.Fetcher) {
			defer wg.Done()
			for page := 1; page <= o.pages; page++ {
				raws, err := f.Fetch(ctx, page)
				o.metrics.RecordFetch(f.Exchange(), len(raws), err)
				if err != nil {
					log.Warn("fetch failed",
						logger.String("exchange", f.Exchange()),
						logger.Int("page", page),
						logger.Error(err),
					)
					return
				}
				for _, r := range raws {
					r.TrimSpace()
				}
				batches[i] = append(batches[i], raws...)
				if len(raws) == 0 {
					return
				}
			}
		}(i, f)
	}
	wg.Wait()

	var all []*domain.RawAnnouncement
	for _, b := range batches {
		all = append(all, b...)
	}
	return all
}

func (o *Orchestrator) classify(ctx context.Context, runID string, raw *domain.RawAnnouncement) ([]*domain.NormalizedAnnouncement, *domain.ClassificationRecord, error) {
	started := time.Now()
	records, cls, err := o.normalizer.Normalize(ctx, raw)
	elapsed := time.Since(started)

	record := &domain.ClassificationRecord{
		RunID:        runID,
		Exchange:     raw.Exchange,
		Title:        raw.Title,
		URL:          raw.URL,
		DurationMs:   elapsed.Milliseconds(),
		ClassifiedAt: started.UTC(),
	}

	if err != nil {
		record.Status = domain.ClassificationFailed
		record.Error = err.Error()
		var ce *classifier.ClassificationError
		if errors.As(err, &ce) {
			record.Attempts = ce.Attempts
		}
		o.metrics.RecordClassification(raw.Exchange, string(domain.ClassificationFailed), elapsed)
		return nil, record, err
	}

	record.Status = domain.ClassificationOK
	if cls != nil {
		record.Categories = cls.Categories
		record.Confidence = cls.Confidence
		record.Attempts = cls.Attempts
	}
	if len(records) > 0 {
		record.TokenCount = len(records[0].Tokens)
	}
	o.metrics.RecordClassification(raw.Exchange, string(domain.ClassificationOK), elapsed)
	return records, record, nil
}

// linkTokens resolves and links every candidate of an inserted row.
func (o *Orchestrator) linkTokens(ctx context.Context, log logger.Logger, row *domain.Announcement, tokens []domain.TokenCandidate) int {
	linked := 0
	for _, c := range tokens {
		if c.IsEmpty() {
			continue
		}
		token, err := o.tokenStore.FindOrCreate(ctx, c.Name, c.Symbol, row.ID)
		if err != nil {
			o.metrics.RecordPersistenceError("token")
			log.Error("resolve token failed",
				logger.Int64("announcement_id", row.ID),
				logger.String("symbol", c.Symbol),
				logger.Error(err),
			)
			continue
		}
		if err := o.tokenStore.Link(ctx, row.ID, token.ID); err != nil {
			o.metrics.RecordPersistenceError("announcement_token")
			log.Error("link token failed",
				logger.Int64("announcement_id", row.ID),
				logger.Int64("token_id", token.ID),
				logger.Error(err),
			)
			continue
		}
		linked++
	}
	o.metrics.RecordTokensLinked(linked)
	return linked
}

func (o *Orchestrator) begin(runID string, started time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.Running++
	o.status.LastRunID = runID
	o.status.LastStartedAt = started
}

func (o *Orchestrator) finish(result *domain.CycleResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.Running--
	o.status.Cycles++
	o.status.LastFinishedAt = time.Now()
	if err != nil {
		o.status.Failures++
		o.status.LastError = err.Error()
		return
	}
	o.status.LastError = ""
	o.status.LastResult = result
}
