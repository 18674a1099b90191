package domain

import "time"

// Classification is the result of one AI classification. Attempts counts
// the model calls it took, retries included.
type Classification struct {
	Categories []string         `json:"categories"`
	Confidence float64          `json:"confidence"`
	Tokens     []TokenCandidate `json:"tokens"`
	Exchange   string           `json:"exchange"`
	Analysis   string           `json:"analysis"`
	Attempts   int              `json:"attempts"`
}

// ClassificationStatus is the outcome of a classification attempt.
type ClassificationStatus string

const (
	ClassificationOK     ClassificationStatus = "ok"
	ClassificationFailed ClassificationStatus = "failed"
)

// ClassificationRecord is an append-only audit row for one classified title.
// Corresponds to classification_log table in ClickHouse.
type ClassificationRecord struct {
	RunID        string
	Exchange     string
	Title        string
	URL          string
	Categories   []string
	Confidence   float64
	TokenCount   int
	Attempts     int
	Status       ClassificationStatus
	Error        string
	DurationMs   int64
	ClassifiedAt time.Time
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	RunID               string
	Fetched             int
	SkippedSeen         int
	Classified          int
	ClassifyFailed      int
	Inserted            int
	Duplicates          int
	TokensLinked        int
	NotificationsSent   int
	NotificationsFailed int
	Duration            time.Duration
}
