// Package crawler fetches configured listing pages and extracts article
// candidates via per-source CSS selectors.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/retry"
	"NewsDigest/internal/sources"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// Crawler fetches each source independently; a source that fails entirely
// is recorded as a SourceError and never aborts the crawl.
type Crawler struct {
	client *http.Client
	fetch  retry.Policy
	logger *slog.Logger
}

var _ ports.Crawler = (*Crawler)(nil)

// New wires an HTTP client; a nil client gets a bounded-timeout default.
func New(client *http.Client, timeout time.Duration, logger *slog.Logger) *Crawler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		}
	}
	return &Crawler{
		client: client,
		fetch:  retry.Policy{Attempts: 2, Backoff: 500 * time.Millisecond},
		logger: logger,
	}
}

// Crawl fetches all sources concurrently, merges candidates in configured
// source order, de-duplicates by link and truncates to maxArticles.
func (c *Crawler) Crawl(ctx context.Context, descs []sources.Descriptor, maxArticles int) ([]domain.Article, []domain.SourceError) {
	perSource := make([][]domain.Article, len(descs))
	perError := make([]*domain.SourceError, len(descs))

	var wg sync.WaitGroup
	for i, desc := range descs {
		wg.Add(1)
		go func(i int, desc sources.Descriptor) {
			defer wg.Done()
			articles, err := c.crawlSource(ctx, desc)
			if err != nil {
				perError[i] = &domain.SourceError{
					Source: desc.Name,
					URL:    desc.URL,
					Reason: err.Error(),
				}
				return
			}
			perSource[i] = articles
		}(i, desc)
	}
	wg.Wait()

	var (
		merged []domain.Article
		errs   []domain.SourceError
		seen   = map[string]struct{}{}
	)
	for i := range descs {
		if perError[i] != nil {
			errs = append(errs, *perError[i])
			continue
		}
		for _, article := range perSource[i] {
			if _, ok := seen[article.Link]; ok {
				continue
			}
			seen[article.Link] = struct{}{}
			merged = append(merged, article)
		}
	}

	if maxArticles > 0 && len(merged) > maxArticles {
		merged = merged[:maxArticles]
	}

	c.debug("crawl done", "sources", len(descs), "failed", len(errs), "articles", len(merged))
	return merged, errs
}

func (c *Crawler) crawlSource(ctx context.Context, desc sources.Descriptor) ([]domain.Article, error) {
	var doc *goquery.Document
	err := c.fetch.Do(ctx, func(ctx context.Context) error {
		fetched, err := c.fetchDocument(ctx, desc.URL)
		if err != nil {
			return err
		}
		doc = fetched
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	base, err := url.Parse(desc.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %s: %w", desc.BaseURL, err)
	}

	var articles []domain.Article
	doc.Find(desc.ItemSelector).Each(func(i int, item *goquery.Selection) {
		article, ok := parseItem(item, desc, base)
		if !ok {
			return
		}
		articles = append(articles, article)
	})

	c.debug("source crawled", "source", desc.Name, "articles", len(articles))
	return articles, nil
}

func (c *Crawler) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// parseItem extracts one candidate; items missing a title or link are skipped.
func parseItem(item *goquery.Selection, desc sources.Descriptor, base *url.URL) (domain.Article, bool) {
	title := strings.TrimSpace(item.Find(desc.TitleSelector).First().Text())
	if title == "" {
		return domain.Article{}, false
	}

	href, exists := item.Find(desc.LinkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !exists || href == "" {
		return domain.Article{}, false
	}
	link := resolveLink(href, base)

	publishTime := ""
	if desc.TimeSelector != "" {
		publishTime = strings.TrimSpace(item.Find(desc.TimeSelector).First().Text())
	}

	source := desc.Name
	if desc.SourceSelector != "" {
		if s := strings.TrimSpace(item.Find(desc.SourceSelector).First().Text()); s != "" {
			source = s
		}
	}

	return domain.Article{
		Title:       title,
		Link:        link,
		PublishTime: publishTime,
		Source:      source,
	}, true
}

func resolveLink(href string, base *url.URL) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (c *Crawler) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
