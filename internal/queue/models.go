package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a demonstration in the ledger.
type Status string

const (
	// StatusPending is discovered and waiting to be processed.
	StatusPending Status = "pending"
	// StatusProcessing is being consolidated and archived.
	StatusProcessing Status = "processing"
	// StatusCompleted has a committed archive.
	StatusCompleted Status = "completed"
	// StatusFailed failed for a reason a retry may fix (estimator crash, I/O).
	StatusFailed Status = "failed"
	// StatusReview failed on its inputs and needs manual attention.
	StatusReview Status = "review"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// Item is one demonstration row.
type Item struct {
	ID           int64
	Name         string
	SourcePath   string
	ArchivePath  string
	Status       Status
	Mode         string
	Frames       int
	Prompts      []string
	Datasets     int
	ArchiveBytes int64
	ErrorMessage string
	ErrorKind    string
	RunID        string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Duration returns how long the last run took, or zero while it is unfinished.
func (i *Item) Duration() time.Duration {
	if i.StartedAt == nil || i.FinishedAt == nil {
		return 0
	}
	return i.FinishedAt.Sub(*i.StartedAt)
}

// Outcome is the result of a successful run.
type Outcome struct {
	ArchivePath  string
	Mode         string
	Frames       int
	Prompts      []string
	Datasets     int
	ArchiveBytes int64
}

// Summary aggregates ledger counts per status.
type Summary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Review     int
}
