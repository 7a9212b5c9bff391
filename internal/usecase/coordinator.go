package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/sources"
)

// ErrAlreadyRunning is returned by Trigger while a pipeline is in flight.
var ErrAlreadyRunning = errors.New("generation already in progress")

const (
	progressCrawlStart = 10
	progressCrawlDone  = 40
	progressItemsDone  = 95

	defaultSettle = 2 * time.Second
	defaultGrace  = 30 * time.Second
)

// CoordinatorDeps wires the pipeline stages into the coordinator.
type CoordinatorDeps struct {
	Registry    *sources.Registry
	Crawler     ports.Crawler
	Summarizer  ports.Summarizer
	Store       ports.ReportStore
	Recorder    ports.RunRecorder
	Logger      *slog.Logger
	MaxArticles int

	// Settle delays re-triggering after a terminal state; Grace is how
	// long a terminal state stays visible before Status flips it back to
	// idle. Zero values get defaults.
	Settle time.Duration
	Grace  time.Duration

	Now func() time.Time
}

// Coordinator owns the single GenerationState of the process and enforces
// single-flight execution: at most one pipeline run at any time.
type Coordinator struct {
	registry    *sources.Registry
	crawler     ports.Crawler
	summarizer  ports.Summarizer
	store       ports.ReportStore
	recorder    ports.RunRecorder
	logger      *slog.Logger
	maxArticles int
	settle      time.Duration
	grace       time.Duration
	now         func() time.Time

	mu    sync.Mutex
	state domain.GenerationState
}

// NewCoordinator builds an idle coordinator.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	settle := deps.Settle
	if settle <= 0 {
		settle = defaultSettle
	}
	grace := deps.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	maxArticles := deps.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 10
	}

	return &Coordinator{
		registry:    deps.Registry,
		crawler:     deps.Crawler,
		summarizer:  deps.Summarizer,
		store:       deps.Store,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
		maxArticles: maxArticles,
		settle:      settle,
		grace:       grace,
		now:         now,
		state:       domain.GenerationState{Status: domain.StatusIdle},
	}
}

// Trigger starts the pipeline asynchronously if no run is in flight. The
// call returns as soon as the run is accepted; it never waits for the
// result. The returned id identifies the accepted run.
func (c *Coordinator) Trigger() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acceptableLocked() {
		return "", ErrAlreadyRunning
	}

	runID := uuid.New().String()
	c.state = domain.GenerationState{
		RunID:     runID,
		Status:    domain.StatusCrawling,
		Progress:  0,
		Message:   "crawling news sources",
		StartedAt: c.now(),
	}

	go c.run(runID)
	return runID, nil
}

// Status returns a snapshot of the current state. A terminal state that
// has outlived the grace period flips back to idle so the coordinator is
// ready for the next day's run.
func (c *Coordinator) Status() domain.GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminalLocked() && c.now().Sub(c.state.FinishedAt) >= c.grace {
		c.state = domain.GenerationState{Status: domain.StatusIdle}
	}

	return c.state
}

func (c *Coordinator) acceptableLocked() bool {
	switch c.state.Status {
	case domain.StatusIdle:
		return true
	case domain.StatusCompleted, domain.StatusFailed:
		return c.now().Sub(c.state.FinishedAt) >= c.settle
	default:
		return false
	}
}

func (c *Coordinator) terminalLocked() bool {
	return c.state.Status == domain.StatusCompleted || c.state.Status == domain.StatusFailed
}

// run executes crawl -> summarize -> persist, advancing the shared state.
// It owns every state mutation for the lifetime of the run.
func (c *Coordinator) run(runID string) {
	ctx := context.Background()
	date := c.now().Format("2006-01-02")
	startedAt := c.now()

	descs := c.registry.Sources()
	c.info("pipeline started", "run_id", runID, "date", date, "sources", len(descs))
	c.setProgress(runID, progressCrawlStart, "crawling news sources")

	candidates, srcErrs := c.crawler.Crawl(ctx, descs, c.maxArticles)
	for _, srcErr := range srcErrs {
		c.warn("source failed", "run_id", runID, "source", srcErr.Source, "url", srcErr.URL, "reason", srcErr.Reason)
	}

	if len(candidates) == 0 {
		c.fail(runID, date, startedAt, len(srcErrs), fmt.Sprintf("no articles could be crawled (%d sources failed)", len(srcErrs)))
		return
	}

	c.transition(runID, domain.StatusProcessing, progressCrawlDone, "summarizing articles")

	summarized, hotTopics, err := c.summarizer.Summarize(ctx, candidates, func(done, total int) {
		span := progressItemsDone - progressCrawlDone
		c.setProgress(runID, progressCrawlDone+span*done/total, "summarizing articles")
	})
	if err != nil {
		c.fail(runID, date, startedAt, len(srcErrs), fmt.Sprintf("summarization aborted: %v", err))
		return
	}

	report := domain.DailyReport{
		Date:      date,
		Articles:  summarized,
		HotTopics: hotTopics,
	}

	if err := c.store.Save(report); err != nil {
		c.fail(runID, date, startedAt, len(srcErrs), fmt.Sprintf("persist report: %v", err))
		return
	}

	finishedAt := c.now()
	c.mu.Lock()
	if c.state.RunID == runID {
		c.state.Status = domain.StatusCompleted
		c.state.Progress = 100
		c.state.Message = "report generated"
		c.state.FinishedAt = finishedAt
	}
	c.mu.Unlock()

	c.info("pipeline completed", "run_id", runID, "date", date,
		"articles", len(summarized), "source_errors", len(srcErrs))

	c.record(ctx, domain.RunRecord{
		ID:            runID,
		Date:          date,
		Status:        domain.StatusCompleted,
		ArticleCount:  len(summarized),
		FallbackCount: countFallbacks(summarized),
		SourceErrors:  len(srcErrs),
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	})
}

// transition moves to a new phase; setProgress only ever raises progress
// so polls observe a monotonic sequence within one run.
func (c *Coordinator) transition(runID string, status domain.GenerationStatus, progress int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.RunID != runID {
		return
	}
	c.state.Status = status
	if progress > c.state.Progress {
		c.state.Progress = progress
	}
	c.state.Message = message
}

func (c *Coordinator) setProgress(runID string, progress int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.RunID != runID {
		return
	}
	if progress > c.state.Progress {
		c.state.Progress = progress
	}
	c.state.Message = message
}

func (c *Coordinator) fail(runID, date string, startedAt time.Time, sourceErrors int, reason string) {
	finishedAt := c.now()

	c.mu.Lock()
	if c.state.RunID == runID {
		c.state.Status = domain.StatusFailed
		c.state.Message = "generation failed"
		c.state.Error = reason
		c.state.FinishedAt = finishedAt
	}
	c.mu.Unlock()

	c.errorLog("pipeline failed", "run_id", runID, "date", date, "reason", reason)

	c.record(context.Background(), domain.RunRecord{
		ID:           runID,
		Date:         date,
		Status:       domain.StatusFailed,
		SourceErrors: sourceErrors,
		Error:        reason,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	})
}

// record is best effort: audit failures are logged, never surfaced.
func (c *Coordinator) record(ctx context.Context, run domain.RunRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRun(ctx, run); err != nil {
		c.warn("record run", "run_id", run.ID, "error", err)
	}
}

func countFallbacks(articles []domain.SummarizedArticle) int {
	n := 0
	for _, article := range articles {
		if article.Summary.Origin == domain.SummaryOriginFallback {
			n++
		}
	}
	return n
}

func (c *Coordinator) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Coordinator) errorLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
