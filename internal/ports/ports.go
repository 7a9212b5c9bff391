package ports

import (
	"context"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/sources"
)

// Crawler turns configured sources into article candidates. A failing
// source is reported, not fatal; an empty result is still a success.
type Crawler interface {
	Crawl(ctx context.Context, descs []sources.Descriptor, maxArticles int) ([]domain.Article, []domain.SourceError)
}

// ChatClient performs one chat-completion call against the provider.
type ChatClient interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces per-item summaries plus the day's hot-topics
// aggregate. Every returned article carries a non-empty summary; the
// fallback path guarantees this even when the provider is down.
type Summarizer interface {
	Summarize(ctx context.Context, candidates []domain.Article, progress func(done, total int)) ([]domain.SummarizedArticle, domain.Summary, error)
}

// ReportStore renders and persists one report per date.
type ReportStore interface {
	Save(report domain.DailyReport) error
	ListDates() ([]domain.ReportInfo, error)
	Read(date string) (domain.ReportContent, error)
}

// RunRecorder keeps an audit trail of pipeline runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run domain.RunRecord) error
}
