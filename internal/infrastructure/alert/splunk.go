package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

const hecPath = "/services/collector/event"

// SplunkSender posts alerts to a Splunk HTTP Event Collector behind a circuit breaker.
type SplunkSender struct {
	endpoint   string
	token      string
	index      string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

var _ ports.AlertSender = (*SplunkSender)(nil)

// NewSplunkSender builds a sender from configuration.
func NewSplunkSender(cfg config.SplunkConfig, log *slog.Logger) (*SplunkSender, error) {
	if !cfg.Enabled() {
		return nil, apperr.New(apperr.ErrConfiguration, "splunk sender", "SPLUNK_URL and SPLUNK_TOKEN must be set")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	index := cfg.Index
	if index == "" {
		index = "threat_intel"
	}

	cbLog := logger.Component(log, "alert.splunk")
	settings := gobreaker.Settings{
		Name:        "splunk-hec",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cbLog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &SplunkSender{
		endpoint:   strings.TrimSuffix(cfg.URL, "/") + hecPath,
		token:      cfg.Token,
		index:      index,
		httpClient: &http.Client{Timeout: timeout},
		cb:         gobreaker.NewCircuitBreaker(settings),
	}, nil
}

// Send posts the alert as a HEC event. An open breaker fails fast.
func (s *SplunkSender) Send(ctx context.Context, a domain.Alert) error {
	body, err := json.Marshal(map[string]any{
		"event":      a,
		"index":      s.index,
		"sourcetype": "_json",
	})
	if err != nil {
		return fmt.Errorf("marshal splunk event: %w", err)
	}

	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, body)
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrTransientNetwork, "send splunk event", err)
	}
	return nil
}

func (s *SplunkSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Splunk "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("splunk error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}
