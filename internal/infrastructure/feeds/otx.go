package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
	"ThreatScanner/pkg/logger"
)

const (
	defaultOTXBaseURL = "https://otx.alienvault.com"
	defaultOTXLimit   = 5
	pulsesPath        = "/api/v1/pulses/explore"
)

type otxPulse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

type otxPulsePage struct {
	Results []otxPulse `json:"results"`
}

// OTXCollector pulls recent public pulses from AlienVault OTX.
type OTXCollector struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

var _ collector.Collector = (*OTXCollector)(nil)

// NewOTXCollector creates a reusable client. An empty baseURL targets the public OTX API.
func NewOTXCollector(baseURL, apiKey string, client *http.Client, log *slog.Logger) *OTXCollector {
	if baseURL == "" {
		baseURL = defaultOTXBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OTXCollector{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    client,
		logger:  logger.Component(log, "collector.otx"),
	}
}

// Name identifies the strategy inside the registry.
func (c *OTXCollector) Name() string {
	return "otx"
}

// Collect requests the newest pulses; each pulse becomes one document.
func (c *OTXCollector) Collect(ctx context.Context, req collector.Request) ([]domain.Document, error) {
	if c.apiKey == "" {
		return nil, apperr.New(apperr.ErrConfiguration, "otx collect", "OTX_API_KEY is not set")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultOTXLimit
	}
	source := req.SourceName
	if source == "" {
		source = c.Name()
	}

	endpoint := c.baseURL + pulsesPath
	if len(req.URLs) > 0 {
		endpoint = req.URLs[0]
	}

	var page otxPulsePage
	if err := c.get(ctx, endpoint, limit, &page); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(page.Results))
	for _, pulse := range page.Results {
		stamp := pulse.Created
		if stamp == "" {
			stamp = pulse.Modified
		}
		docs = append(docs, domain.Document{
			ID:        pulse.ID,
			Text:      strings.TrimSpace(pulse.Name + "\n" + pulse.Description),
			Source:    source,
			URL:       c.baseURL + "/pulse/" + url.PathEscape(pulse.ID),
			Timestamp: stamp,
		})
	}
	c.logger.Debug("otx pulses fetched", "count", len(docs))
	return docs, nil
}

func (c *OTXCollector) get(ctx context.Context, endpoint string, limit int, v any) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid otx url %s: %w", endpoint, err)
	}
	query := parsed.Query()
	query.Set("limit", strconv.Itoa(limit))
	parsed.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-OTX-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &collector.StatusError{URL: endpoint, Code: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
