package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/retry"
)

const (
	fallbackTitleLimit   = 120
	fallbackTopicsLimit  = 5
	defaultRetryAttempts = 3
)

// Engine summarizes candidates through the configured provider. A
// provider failure never stalls the pipeline: exhausted retries produce a
// deterministic local fallback, so every article ends with a summary.
type Engine struct {
	chat   ports.ChatClient
	policy retry.Policy
	logger *slog.Logger
}

var _ ports.Summarizer = (*Engine)(nil)

// NewEngine builds the engine; maxRetries counts retries beyond the first
// attempt, mirroring the API_MAX_RETRIES contract. A nil chat client
// short-circuits every item to the fallback path.
func NewEngine(chat ports.ChatClient, maxRetries int, backoff time.Duration, logger *slog.Logger) *Engine {
	attempts := maxRetries + 1
	if maxRetries < 0 {
		attempts = defaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Engine{
		chat:   chat,
		policy: retry.Policy{Attempts: attempts, Backoff: backoff},
		logger: logger,
	}
}

// Summarize produces per-item summaries sequentially (rate-limit friendly,
// deterministic order), then one aggregate hot-topics summary.
func (e *Engine) Summarize(ctx context.Context, candidates []domain.Article, progress func(done, total int)) ([]domain.SummarizedArticle, domain.Summary, error) {
	total := len(candidates) + 1 // items plus the aggregate call

	summarized := make([]domain.SummarizedArticle, 0, len(candidates))
	fatalCount := 0
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, domain.Summary{}, err
		}

		summary, fatal := e.summarizeItem(ctx, candidate)
		if fatal {
			fatalCount++
		}
		summarized = append(summarized, domain.SummarizedArticle{Article: candidate, Summary: summary})

		if progress != nil {
			progress(i+1, total)
		}
	}

	if len(candidates) > 0 && fatalCount == len(candidates) {
		e.error("provider failed fatally on every item, check credentials and endpoint configuration")
	}

	hotTopics := e.summarizeDay(ctx, summarized)
	if progress != nil {
		progress(total, total)
	}

	return summarized, hotTopics, nil
}

func (e *Engine) summarizeItem(ctx context.Context, candidate domain.Article) (domain.Summary, bool) {
	text, err := e.complete(ctx, itemPrompt(candidate))
	if err != nil {
		e.warn("item summary fell back", "title", candidate.Title, "error", err)
		return domain.Summary{
			Text:   fallbackItemSummary(candidate),
			Origin: domain.SummaryOriginFallback,
		}, isFatal(err)
	}
	return domain.Summary{Text: text, Origin: domain.SummaryOriginProvider}, false
}

func (e *Engine) summarizeDay(ctx context.Context, articles []domain.SummarizedArticle) domain.Summary {
	text, err := e.complete(ctx, aggregatePrompt(articles))
	if err != nil {
		e.warn("hot-topics summary fell back", "error", err)
		return domain.Summary{
			Text:   fallbackHotTopics(articles),
			Origin: domain.SummaryOriginFallback,
		}
	}
	return domain.Summary{Text: text, Origin: domain.SummaryOriginProvider}
}

func (e *Engine) complete(ctx context.Context, prompt string) (string, error) {
	if e.chat == nil {
		return "", errors.New("no provider configured")
	}

	var content string
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		text, err := e.chat.Chat(ctx, prompt)
		if err != nil {
			return err
		}
		content = strings.TrimSpace(text)
		if content == "" {
			return errors.New("provider returned empty content")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func itemPrompt(candidate domain.Article) string {
	var sb strings.Builder
	sb.WriteString("You are a news editor. Write an objective, neutral summary of at most 50 words for this news item.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", candidate.Title)
	if candidate.Source != "" {
		fmt.Fprintf(&sb, "Source: %s\n", candidate.Source)
	}
	if candidate.PublishTime != "" {
		fmt.Fprintf(&sb, "Published: %s\n", candidate.PublishTime)
	}
	fmt.Fprintf(&sb, "Link: %s\n\n", candidate.Link)
	sb.WriteString("Respond with the summary text only, no preamble.")
	return sb.String()
}

func aggregatePrompt(articles []domain.SummarizedArticle) string {
	var sb strings.Builder
	sb.WriteString("You are a news editor. Based on today's items below, write a \"hot topics\" overview of at most 300 words covering the main stories and trends of the day.\n\n")
	for i, article := range articles {
		fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, article.Title, article.Source)
		fmt.Fprintf(&sb, "   %s\n", article.Summary.Text)
	}
	sb.WriteString("\nRespond with the overview text only, no preamble.")
	return sb.String()
}

// fallbackItemSummary is deterministic: a truncated restatement of the
// title, so tests and re-runs produce identical reports.
func fallbackItemSummary(candidate domain.Article) string {
	title := truncateRunes(strings.TrimSpace(candidate.Title), fallbackTitleLimit)
	return fmt.Sprintf("%s (automatic summary unavailable, see the original article)", title)
}

func fallbackHotTopics(articles []domain.SummarizedArticle) string {
	titles := make([]string, 0, fallbackTopicsLimit)
	for _, article := range articles {
		if len(titles) == fallbackTopicsLimit {
			break
		}
		titles = append(titles, article.Title)
	}
	if len(titles) == 0 {
		return "Automatic summarization was unavailable for this run and no headlines were collected."
	}
	return fmt.Sprintf("Automatic summarization was unavailable for this run. Headlines of note: %s.", strings.Join(titles, "; "))
}

func isFatal(err error) bool {
	var t retry.Transient
	if errors.As(err, &t) {
		return !t.IsTransient()
	}
	return false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) error(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}
