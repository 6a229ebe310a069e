package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
	"ThreatScanner/pkg/logger"
)

const userAgent = "ThreatScanner/1.0"

// RSSCollector reads RSS/Atom feeds and turns each item into a document.
type RSSCollector struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ collector.Collector = (*RSSCollector)(nil)

// NewRSSCollector wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSCollector(client *http.Client, log *slog.Logger) *RSSCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	fp := gofeed.NewParser()
	fp.Client = client
	fp.UserAgent = userAgent
	return &RSSCollector{parser: fp, logger: logger.Component(log, "collector.rss")}
}

// Name identifies the strategy inside the registry.
func (r *RSSCollector) Name() string {
	return "rss"
}

// Collect parses every feed URL in order. Limit caps items per feed.
func (r *RSSCollector) Collect(ctx context.Context, req collector.Request) ([]domain.Document, error) {
	if len(req.URLs) == 0 {
		return nil, fmt.Errorf("no feed urls provided for source %s", req.SourceName)
	}

	source := req.SourceName
	if source == "" {
		source = r.Name()
	}

	var docs []domain.Document
	for _, feedURL := range req.URLs {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			var httpErr gofeed.HTTPError
			if errors.As(err, &httpErr) {
				return nil, &collector.StatusError{URL: feedURL, Code: httpErr.StatusCode, Status: httpErr.Status}
			}
			return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
		}

		items := feed.Items
		if req.Limit > 0 && len(items) > req.Limit {
			items = items[:req.Limit]
		}
		for _, item := range items {
			if item == nil {
				continue
			}
			docs = append(docs, domain.Document{
				Text:      strings.TrimSpace(item.Title + "\n" + item.Description),
				Source:    source,
				URL:       item.Link,
				Timestamp: item.Published,
			})
		}
		r.logger.Debug("feed parsed", "url", feedURL, "items", len(items))
	}

	return docs, nil
}
