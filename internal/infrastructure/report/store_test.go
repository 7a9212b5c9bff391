package report

import (
	"errors"
	"os"
	"strings"
	"testing"

	"NewsDigest/internal/domain"
)

func sampleReport(date, hotTopics string) domain.DailyReport {
	return domain.DailyReport{
		Date: date,
		Articles: []domain.SummarizedArticle{
			{
				Article: domain.Article{
					Title:       "Markets rally",
					Link:        "https://example.com/1",
					PublishTime: "08:00",
					Source:      "Wire",
				},
				Summary: domain.Summary{Text: "Stocks went up.", Origin: domain.SummaryOriginProvider},
			},
			{
				Article: domain.Article{
					Title:  "Rain expected",
					Link:   "https://example.com/2",
					Source: "Weather Desk",
				},
				Summary: domain.Summary{Text: "Rain expected", Origin: domain.SummaryOriginFallback},
			},
		},
		HotTopics: domain.Summary{Text: hotTopics, Origin: domain.SummaryOriginProvider},
	}
}

func TestSaveAndRead(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Save(sampleReport("2025-03-01", "Markets and weather dominated.")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	content, err := store.Read("2025-03-01")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(content.Content, "# Daily News (2025-03-01)") {
		t.Fatalf("missing heading:\n%s", content.Content)
	}
	if !strings.Contains(content.Content, "Markets rally") ||
		!strings.Contains(content.Content, "https://example.com/1") {
		t.Fatal("article title or link missing from rendered body")
	}
	if content.Summary != "Markets and weather dominated." {
		t.Fatalf("unexpected extracted summary: %q", content.Summary)
	}
}

func TestSaveSameDateReplacesPriorReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Save(sampleReport("2025-03-01", "first run")); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save(sampleReport("2025-03-01", "second run")); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one persisted report, got %d", len(entries))
	}

	content, err := store.Read("2025-03-01")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if content.Summary != "second run" {
		t.Fatalf("expected second run content, got %q", content.Summary)
	}
}

func TestListDatesNewestFirst(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for _, date := range []string{"2025-03-01", "2025-03-03", "2025-03-02"} {
		if err := store.Save(sampleReport(date, "topics for "+date)); err != nil {
			t.Fatalf("Save %s: %v", date, err)
		}
	}

	infos, err := store.ListDates()
	if err != nil {
		t.Fatalf("ListDates: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(infos))
	}
	want := []string{"2025-03-03", "2025-03-02", "2025-03-01"}
	for i, info := range infos {
		if info.Date != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, info.Date, want[i])
		}
		if !info.HasSummary {
			t.Fatalf("report %s should carry a summary", info.Date)
		}
	}
}

func TestListDatesIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := os.WriteFile(dir+"/notes.txt", []byte("not a report"), 0o644); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	infos, err := store.ListDates()
	if err != nil {
		t.Fatalf("ListDates: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("foreign files must be ignored, got %v", infos)
	}
}

func TestReadMissingDateReturnsNotFound(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.Read("2099-01-01")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractSummaryFallsBackToFirstParagraph(t *testing.T) {
	t.Parallel()

	body := "# Daily News (2025-03-01)\n\n1. **Something happened** - Wire\n"
	if got := extractSummary(body); !strings.Contains(got, "Something happened") {
		t.Fatalf("unexpected fallback summary: %q", got)
	}
}
