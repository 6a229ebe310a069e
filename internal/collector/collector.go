package collector

import (
	"context"
	"fmt"
	"net/http"

	"ThreatScanner/internal/domain"
)

// Request carries all parameters required to run one configured source.
type Request struct {
	SourceName string
	URLs       []string
	Options    map[string]string
	Limit      int
}

// Collector captures a single strategy implementation (RSS, forum scrape, OTX, etc.).
type Collector interface {
	Name() string
	Collect(ctx context.Context, req Request) ([]domain.Document, error)
}

// StatusError reports an unexpected HTTP status from an upstream.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.URL, e.Status)
}

// Retryable is true for server-side failures and throttling.
func (e *StatusError) Retryable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Registry keeps a mapping from collector names to their implementations.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[string]Collector{}}
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[string]Collector{}
	}
	r.collectors[c.Name()] = c
}

// Resolve returns a collector by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Collector, error) {
	if c, ok := r.collectors[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collector %s is not registered", name)
}
