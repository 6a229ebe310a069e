package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
	"ThreatScanner/pkg/logger"
)

const (
	defaultForumURL   = "https://security.stackexchange.com/questions?sort=newest"
	defaultForumLimit = 20

	// Both the classic and the current Stack Exchange question list markup.
	summarySelector = ".question-summary, .s-post-summary"
	linkSelector    = ".question-hyperlink, .s-post-summary--content-title a"
	timeSelector    = ".relativetime"
)

// ForumCollector scrapes the newest questions of a security forum listing.
type ForumCollector struct {
	client *http.Client
	logger *slog.Logger
}

var _ collector.Collector = (*ForumCollector)(nil)

// NewForumCollector wires an HTTP client; a nil client gets a 20s timeout.
func NewForumCollector(client *http.Client, log *slog.Logger) *ForumCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ForumCollector{client: client, logger: logger.Component(log, "collector.forum")}
}

// Name identifies the strategy inside the registry.
func (f *ForumCollector) Name() string {
	return "forum"
}

// Collect fetches each listing page and returns up to Limit questions per page.
func (f *ForumCollector) Collect(ctx context.Context, req collector.Request) ([]domain.Document, error) {
	pages := req.URLs
	if len(pages) == 0 {
		pages = []string{defaultForumURL}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultForumLimit
	}
	source := req.SourceName
	if source == "" {
		source = "security_forum"
	}

	var docs []domain.Document
	for _, pageURL := range pages {
		base, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid forum url %s: %w", pageURL, err)
		}

		doc, err := f.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		found := extractQuestions(doc, base, source, limit)
		f.logger.Debug("forum page scraped", "url", pageURL, "questions", len(found))
		docs = append(docs, found...)
	}
	return docs, nil
}

func (f *ForumCollector) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &collector.StatusError{URL: pageURL, Code: resp.StatusCode, Status: resp.Status}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractQuestions(doc *goquery.Document, base *url.URL, source string, limit int) []domain.Document {
	var docs []domain.Document
	doc.Find(summarySelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if d, ok := parseQuestion(s, base, source); ok {
			docs = append(docs, d)
		}
		return len(docs) < limit
	})
	return docs
}

func parseQuestion(s *goquery.Selection, base *url.URL, source string) (domain.Document, bool) {
	link := s.Find(linkSelector).First()
	title := strings.TrimSpace(link.Text())
	if title == "" {
		return domain.Document{}, false
	}

	href, _ := link.Attr("href")
	if ref, err := url.Parse(href); err == nil && href != "" {
		href = base.ResolveReference(ref).String()
	}

	stamp, _ := s.Find(timeSelector).First().Attr("title")

	return domain.Document{
		Text:      title,
		Source:    source,
		URL:       href,
		Timestamp: strings.TrimSpace(stamp),
	}, true
}
