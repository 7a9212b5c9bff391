// Package report renders daily reports to markdown and persists one file
// per calendar date.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// ErrNotFound is returned when no report exists for the requested date.
var ErrNotFound = errors.New("report not found")

const hotTopicsHeading = "## Today's Hot Topics"

var fileNameExpr = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.md$`)

// Store persists rendered reports under dir, keyed by date. Re-saving a
// date replaces the prior file; writes go through a temp file + rename so
// a crash never leaves a partial report.
type Store struct {
	dir string
}

var _ ports.ReportStore = (*Store)(nil)

// NewStore creates the output directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save renders and atomically writes the report for its date.
func (s *Store) Save(report domain.DailyReport) error {
	body := Render(report)

	tmp, err := os.CreateTemp(s.dir, "report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close report: %w", err)
	}

	if err := os.Rename(tmpName, s.path(report.Date)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist report: %w", err)
	}

	return nil
}

// ListDates scans persisted reports and returns their dates, newest first.
func (s *Store) ListDates() ([]domain.ReportInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.ReportInfo{}, nil
		}
		return nil, fmt.Errorf("scan output dir: %w", err)
	}

	infos := make([]domain.ReportInfo, 0, len(entries))
	for _, entry := range entries {
		match := fileNameExpr.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		hasSummary := false
		if raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name())); err == nil {
			hasSummary = strings.Contains(string(raw), hotTopicsHeading)
		}

		infos = append(infos, domain.ReportInfo{Date: match[1], HasSummary: hasSummary})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Date > infos[j].Date })
	return infos, nil
}

// Read returns the rendered body and the extracted hot-topics section for
// an exact date, or ErrNotFound.
func (s *Store) Read(date string) (domain.ReportContent, error) {
	raw, err := os.ReadFile(s.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ReportContent{}, ErrNotFound
		}
		return domain.ReportContent{}, fmt.Errorf("read report: %w", err)
	}

	body := string(raw)
	return domain.ReportContent{
		Summary: extractSummary(body),
		Content: body,
	}, nil
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir, date+".md")
}

// Render produces the canonical markdown document for a report.
func Render(report domain.DailyReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily News (%s)\n\n", report.Date)

	for i, article := range report.Articles {
		fmt.Fprintf(&sb, "%d. **%s** - %s", i+1, article.Title, article.Source)
		if article.PublishTime != "" {
			fmt.Fprintf(&sb, " - %s", article.PublishTime)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "   %s\n", article.Summary.Text)
		fmt.Fprintf(&sb, "   [original](%s)\n\n", article.Link)
	}

	sb.WriteString(hotTopicsHeading + "\n\n")
	sb.WriteString(report.HotTopics.Text)
	sb.WriteString("\n")
	return sb.String()
}

// extractSummary pulls the hot-topics section; when absent it falls back
// to the first body paragraph.
func extractSummary(body string) string {
	if idx := strings.Index(body, hotTopicsHeading); idx >= 0 {
		section := body[idx+len(hotTopicsHeading):]
		if next := strings.Index(section, "\n## "); next >= 0 {
			section = section[:next]
		}
		if trimmed := strings.TrimSpace(section); trimmed != "" {
			return truncateRunes(trimmed, 600)
		}
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "# ") {
			continue
		}
		return truncateRunes(line, 200)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
