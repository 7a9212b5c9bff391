package domain

import "time"

// Article is a minimally-parsed news item extracted from a listing page.
// Link doubles as the identity for de-duplication within a single crawl.
type Article struct {
	Title       string
	Link        string
	PublishTime string
	Source      string
}

// SummaryOrigin tells whether a summary came from the provider or was
// produced locally after the provider gave up.
type SummaryOrigin string

const (
	SummaryOriginProvider SummaryOrigin = "provider"
	SummaryOriginFallback SummaryOrigin = "fallback"
)

// Summary is a non-empty summary text plus its origin.
type Summary struct {
	Text   string
	Origin SummaryOrigin
}

// SummarizedArticle pairs an article with its summary.
type SummarizedArticle struct {
	Article
	Summary Summary
}

// DailyReport is the output of one pipeline run, keyed by calendar date.
// Regenerating the same date replaces the prior report.
type DailyReport struct {
	Date      string // YYYY-MM-DD
	Articles  []SummarizedArticle
	HotTopics Summary
}

// ReportInfo is one entry of the persisted-report index.
type ReportInfo struct {
	Date       string `json:"date"`
	HasSummary bool   `json:"has_summary"`
}

// ReportContent is a rendered report read back from storage.
type ReportContent struct {
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// SourceError records a single source that could not be crawled.
// It never aborts the crawl; the remaining sources still run.
type SourceError struct {
	Source string
	URL    string
	Reason string
}

func (e SourceError) Error() string {
	return e.Source + " (" + e.URL + "): " + e.Reason
}

// GenerationStatus enumerates the coordinator state machine.
type GenerationStatus string

const (
	StatusIdle       GenerationStatus = "idle"
	StatusCrawling   GenerationStatus = "crawling"
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
)

// GenerationState is the poll-able snapshot of the current or last run.
// Progress is monotonically non-decreasing within one run.
type GenerationState struct {
	RunID      string           `json:"run_id,omitempty"`
	Status     GenerationStatus `json:"status"`
	Progress   int              `json:"progress"`
	Message    string           `json:"message,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at,omitzero"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
}

// RunRecord is the audit row persisted per pipeline run.
type RunRecord struct {
	ID            string
	Date          string
	Status        GenerationStatus
	ArticleCount  int
	FallbackCount int
	SourceErrors  int
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}
