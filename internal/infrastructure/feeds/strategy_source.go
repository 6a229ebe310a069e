package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

// StrategySource implements DocumentSource via registered collector strategies.
type StrategySource struct {
	registry *collector.Registry
	sources  []config.SourceConfig
	retry    config.RetryConfig
	logger   *slog.Logger
}

var _ ports.DocumentSource = (*StrategySource)(nil)

// NewStrategySource wires the collector registry with config-defined sources.
func NewStrategySource(reg *collector.Registry, sources []config.SourceConfig, retry config.RetryConfig, log *slog.Logger) *StrategySource {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 500 * time.Millisecond
	}
	if retry.MaxInterval < retry.InitialInterval {
		retry.MaxInterval = retry.InitialInterval
	}
	return &StrategySource{
		registry: reg,
		sources:  sources,
		retry:    retry,
		logger:   logger.Component(log, "source"),
	}
}

// Collect runs every source in order. A source that still fails after its
// retries is skipped; its error is joined into the returned error while the
// documents of healthy sources are still returned.
func (s *StrategySource) Collect(ctx context.Context) ([]domain.Document, error) {
	if s.registry == nil {
		return nil, apperr.New(apperr.ErrConfiguration, "collect", "collector registry is not configured")
	}

	s.logger.Debug("collect", "sources", len(s.sources))

	var (
		aggregated []domain.Document
		failures   []error
	)
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Collector)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrConfiguration, "source "+src.Name, err)
		}

		req := collector.Request{
			SourceName: src.Name,
			URLs:       src.URLs,
			Options:    src.Options,
			Limit:      src.Limit,
		}

		results, err := s.collectWithRetry(ctx, strategy, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return aggregated, ctxErr
			}
			s.logger.Warn("source failed", "source", src.Name, "collector", src.Collector, "error", err)
			failures = append(failures, classifyFailure(src.Name, err))
			continue
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = src.Name
			}
			results[i] = results[i].WithID()
		}
		s.logger.Debug("source produced documents", "source", src.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.logger.Debug("strategy source done", "total_documents", len(aggregated), "failed_sources", len(failures))
	return aggregated, errors.Join(failures...)
}

func (s *StrategySource) collectWithRetry(ctx context.Context, strategy collector.Collector, req collector.Request) ([]domain.Document, error) {
	var docs []domain.Document
	attempt := 0

	op := func() error {
		attempt++
		out, err := strategy.Collect(ctx, req)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			s.logger.Debug("collect attempt failed", "source", req.SourceName, "attempt", attempt, "error", err)
			return err
		}
		docs = out
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retry.InitialInterval
	policy.MaxInterval = s.retry.MaxInterval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.retry.Attempts-1)), ctx))
	return docs, err
}

func retryable(err error) bool {
	if errors.Is(err, apperr.ErrConfiguration) {
		return false
	}
	var status *collector.StatusError
	if errors.As(err, &status) {
		return status.Retryable()
	}
	return true
}

func classifyFailure(source string, err error) error {
	if retryable(err) {
		return apperr.Wrap(apperr.ErrTransientNetwork, "source "+source, err)
	}
	return fmt.Errorf("source %s: %w", source, err)
}
