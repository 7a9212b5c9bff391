package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/report"
	"NewsDigest/internal/sources"
	"NewsDigest/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedCrawler struct {
	articles []domain.Article
	block    chan struct{}
}

func (f *fixedCrawler) Crawl(ctx context.Context, descs []sources.Descriptor, maxArticles int) ([]domain.Article, []domain.SourceError) {
	if f.block != nil {
		<-f.block
	}
	return f.articles, nil
}

type fixedSummarizer struct{}

func (fixedSummarizer) Summarize(ctx context.Context, candidates []domain.Article, progress func(done, total int)) ([]domain.SummarizedArticle, domain.Summary, error) {
	out := make([]domain.SummarizedArticle, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, domain.SummarizedArticle{
			Article: candidate,
			Summary: domain.Summary{Text: "summary", Origin: domain.SummaryOriginProvider},
		})
	}
	return out, domain.Summary{Text: "topics", Origin: domain.SummaryOriginProvider}, nil
}

func newTestServer(t *testing.T, crawler *fixedCrawler) (*gin.Engine, *report.Store) {
	t.Helper()

	store, err := report.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	reg, _ := sources.New([]sources.Descriptor{{
		Name:          "stub",
		URL:           "https://example.com/list",
		ItemSelector:  ".item",
		TitleSelector: "h2",
		LinkSelector:  "a",
	}})

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		Registry:    reg,
		Crawler:     crawler,
		Summarizer:  fixedSummarizer{},
		Store:       store,
		MaxArticles: 10,
		Settle:      time.Millisecond,
		Grace:       time.Hour,
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandlers(coordinator, store, logger)), store
}

func doRequest(t *testing.T, router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, &fixedCrawler{})
	rec := doRequest(t, router, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestNewsListReflectsPersistedReports(t *testing.T) {
	t.Parallel()

	router, store := newTestServer(t, &fixedCrawler{})

	rec := doRequest(t, router, http.MethodGet, "/api/news-list")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var empty struct {
		NewsList []domain.ReportInfo `json:"news_list"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(empty.NewsList) != 0 {
		t.Fatalf("expected empty list, got %v", empty.NewsList)
	}

	if err := store.Save(domain.DailyReport{
		Date:      "2025-03-01",
		HotTopics: domain.Summary{Text: "topics", Origin: domain.SummaryOriginProvider},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/news-list")
	var listed struct {
		NewsList []domain.ReportInfo `json:"news_list"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(listed.NewsList) != 1 || listed.NewsList[0].Date != "2025-03-01" || !listed.NewsList[0].HasSummary {
		t.Fatalf("unexpected list: %v", listed.NewsList)
	}
}

func TestNewsDetailValidation(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, &fixedCrawler{})

	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"missing date", "/api/news-detail", http.StatusBadRequest},
		{"malformed date", "/api/news-detail?date=01-03-2025", http.StatusBadRequest},
		{"impossible date", "/api/news-detail?date=2025-13-40", http.StatusBadRequest},
		{"absent date", "/api/news-detail?date=2099-01-01", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tc.target)
			if rec.Code != tc.want {
				t.Fatalf("status %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestNewsDetailReturnsReport(t *testing.T) {
	t.Parallel()

	router, store := newTestServer(t, &fixedCrawler{})
	if err := store.Save(domain.DailyReport{
		Date: "2025-03-01",
		Articles: []domain.SummarizedArticle{{
			Article: domain.Article{Title: "Something", Link: "https://example.com/1", Source: "Wire"},
			Summary: domain.Summary{Text: "brief", Origin: domain.SummaryOriginProvider},
		}},
		HotTopics: domain.Summary{Text: "daily topics", Origin: domain.SummaryOriginProvider},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/news-detail?date=2025-03-01")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}

	var content domain.ReportContent
	if err := json.Unmarshal(rec.Body.Bytes(), &content); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if content.Summary != "daily topics" {
		t.Fatalf("unexpected summary: %q", content.Summary)
	}
	if content.Content == "" {
		t.Fatal("content must carry the rendered body")
	}
}

func TestGenerateNewsAcceptsThenConflicts(t *testing.T) {
	t.Parallel()

	crawler := &fixedCrawler{
		articles: []domain.Article{{Title: "a", Link: "https://example.com/a"}},
		block:    make(chan struct{}),
	}
	router, _ := newTestServer(t, crawler)

	rec := doRequest(t, router, http.MethodPost, "/api/generate-news")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var accepted struct {
		Success bool   `json:"success"`
		RunID   string `json:"run_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !accepted.Success || accepted.RunID == "" {
		t.Fatalf("unexpected acceptance payload: %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/api/generate-news")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second trigger: status %d, want 409", rec.Code)
	}

	status := doRequest(t, router, http.MethodGet, "/api/generate-status")
	var state domain.GenerationState
	if err := json.Unmarshal(status.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if state.Status != domain.StatusCrawling {
		t.Fatalf("expected crawling, got %s", state.Status)
	}

	close(crawler.block)

	deadline := time.After(5 * time.Second)
	for {
		status = doRequest(t, router, http.MethodGet, "/api/generate-status")
		if err := json.Unmarshal(status.Body.Bytes(), &state); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if state.Status == domain.StatusCompleted {
			break
		}
		if state.Status == domain.StatusFailed {
			t.Fatalf("run failed: %s", state.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("run never completed, stuck at %s", state.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if state.Progress != 100 {
		t.Fatalf("final progress %d, want 100", state.Progress)
	}
}

func TestGenerateStatusIdleByDefault(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, &fixedCrawler{})
	rec := doRequest(t, router, http.MethodGet, "/api/generate-status")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var state domain.GenerationState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if state.Status != domain.StatusIdle || state.Progress != 0 {
		t.Fatalf("unexpected initial state: %+v", state)
	}
}
