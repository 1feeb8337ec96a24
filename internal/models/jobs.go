package models

import "time"

// DateFormat is the canonical wire and storage format for calendar dates.
const DateFormat = "2006-01-02"

// Job represents one simulation request: a date range replayed for a set of
// model signatures. At most one job may be active (pending, downloading_data
// or running) at any time.
type Job struct {
	ID                   string    `json:"id"`
	Status               string    `json:"status"`
	StartDate            string    `json:"start_date"` // YYYY-MM-DD
	EndDate              string    `json:"end_date"`   // YYYY-MM-DD
	Models               []string  `json:"models"`
	CreatedAt            time.Time `json:"created_at"`
	StartedAt            time.Time `json:"started_at"`
	CompletedAt          time.Time `json:"completed_at"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	Error                string    `json:"error,omitempty"`
	Warnings             []string  `json:"warnings,omitempty"`
}

// Job status constants
const (
	JobStatusPending         = "pending"
	JobStatusDownloadingData = "downloading_data"
	JobStatusRunning         = "running"
	JobStatusCompleted       = "completed"
	JobStatusPartial         = "partial"
	JobStatusFailed          = "failed"
)

// ActiveJobStatuses are the statuses that block a new job from starting.
var ActiveJobStatuses = []string{JobStatusPending, JobStatusDownloadingData, JobStatusRunning}

// IsTerminalJobStatus reports whether a job status is terminal.
func IsTerminalJobStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusPartial || status == JobStatusFailed
}

// JobDetail tracks one (job, date, model) execution. Unique per triple.
type JobDetail struct {
	ID              int64     `json:"-"`
	JobID           string    `json:"-"`
	Date            string    `json:"date"`
	Model           string    `json:"model"`
	Status          string    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Error           string    `json:"error,omitempty"`
}

// Job detail status constants
const (
	DetailStatusPending   = "pending"
	DetailStatusRunning   = "running"
	DetailStatusCompleted = "completed"
	DetailStatusFailed    = "failed"
	DetailStatusSkipped   = "skipped"
)

// Skip reasons recorded on job details.
const (
	SkipReasonAlreadyCompleted = "Already completed"
	SkipReasonIncompleteData   = "Incomplete price data"
)

// IsTerminalDetailStatus reports whether a detail status is terminal.
func IsTerminalDetailStatus(status string) bool {
	return status == DetailStatusCompleted || status == DetailStatusFailed || status == DetailStatusSkipped
}

// JobProgress summarizes detail counts for a job.
type JobProgress struct {
	Total          int         `json:"total"`
	Completed      int         `json:"completed"`
	Failed         int         `json:"failed"`
	Pending        int         `json:"pending"`
	Skipped        int         `json:"skipped"`
	CurrentRunning []string    `json:"current_running,omitempty"` // "model@date" labels
	Details        []JobDetail `json:"details"`
}

// LastWeekday returns the date of t, or the preceding Friday when t falls on
// a weekend.
func LastWeekday(t time.Time) string {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format(DateFormat)
}

// TradingDates expands [start, end] to the calendar weekdays in order.
// Weekends never trade; market holidays are excluded later by price coverage.
func TradingDates(start, end time.Time) []string {
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d.Format(DateFormat))
	}
	return dates
}
