package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/textproc"
	"ThreatScanner/pkg/logger"
)

const meterName = "ThreatScanner/usecase"

// Classifier scores raw text and returns the clean text it scored.
type Classifier interface {
	Classify(raw string) (string, domain.Verdict)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.DocumentSource
	Repository ports.ThreatRepository
	Classifier Classifier
	Alerts     ports.AlertSender
	// AlertThreshold is the confidence a threat must exceed to be alerted.
	AlertThreshold float64
	Logger         *slog.Logger
	Meter          metric.Meter
}

// RunReport summarizes one collection run.
type RunReport struct {
	Collected  int
	Duplicates int
	Analyzed   int
	Threats    int
	Alerted    int
	Unscored   int
}

// Pipeline implements the collect, classify, persist and alert workflow.
type Pipeline struct {
	source         ports.DocumentSource
	repository     ports.ThreatRepository
	classifier     Classifier
	alerts         ports.AlertSender
	alertThreshold float64
	logger         *slog.Logger
	now            func() time.Time

	documents metric.Int64Counter
	verdicts  metric.Int64Counter
	alertsOut metric.Int64Counter
}

// NewPipeline constructs the orchestration component. Without a Meter the
// global provider is used, which is a no-op unless the host installs one.
func NewPipeline(deps PipelineDeps) *Pipeline {
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	documents, _ := meter.Int64Counter("threatscanner_documents_total",
		metric.WithDescription("Documents seen by the pipeline, by outcome"))
	verdicts, _ := meter.Int64Counter("threatscanner_verdicts_total",
		metric.WithDescription("Verdicts produced, by threat class"))
	alertsOut, _ := meter.Int64Counter("threatscanner_alerts_total",
		metric.WithDescription("Alerts dispatched, by result"))

	return &Pipeline{
		source:         deps.Source,
		repository:     deps.Repository,
		classifier:     deps.Classifier,
		alerts:         deps.Alerts,
		alertThreshold: deps.AlertThreshold,
		logger:         logger.Component(deps.Logger, "pipeline"),
		now:            time.Now,
		documents:      documents,
		verdicts:       verdicts,
		alertsOut:      alertsOut,
	}
}

// RunOnce collects fresh documents, classifies the unseen ones, stores them and
// alerts on confident threats. Collector failures are logged; the run
// continues with whatever the healthy sources returned.
func (p *Pipeline) RunOnce(ctx context.Context) (RunReport, error) {
	var report RunReport
	if p.source == nil || p.classifier == nil {
		return report, nil
	}

	docs, collectErr := p.source.Collect(ctx)
	if collectErr != nil {
		if len(docs) == 0 {
			return report, fmt.Errorf("collect: %w", collectErr)
		}
		p.logger.Warn("some sources failed", "error", collectErr)
	}
	report.Collected = len(docs)
	p.documents.Add(ctx, int64(len(docs)), metric.WithAttributes(attribute.String("outcome", "collected")))

	fresh, err := p.unseen(ctx, docs)
	if err != nil {
		return report, err
	}
	report.Duplicates = len(docs) - len(fresh)
	p.documents.Add(ctx, int64(report.Duplicates), metric.WithAttributes(attribute.String("outcome", "duplicate")))

	for _, doc := range fresh {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		clean, verdict := p.classifier.Classify(doc.Text)
		p.verdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("class", string(verdict.ThreatClass))))

		// Without a model the document is left for a later run instead of
		// being stored with a placeholder verdict.
		if verdict.ThreatClass == domain.ClassUnknown {
			report.Unscored++
			continue
		}

		analyzed := domain.AnalyzedDocument{
			Document:    doc,
			CleanText:   clean,
			Entities:    textproc.ExtractEntities(doc.Text, clean),
			Verdict:     verdict,
			ProcessedAt: p.now().UTC(),
		}

		if p.repository != nil {
			if err := p.repository.SaveAnalyzed(ctx, analyzed); err != nil {
				return report, fmt.Errorf("persist document %s: %w", doc.ID, err)
			}
		}
		report.Analyzed++

		if verdict.IsThreat {
			report.Threats++
		}
		if p.shouldAlert(verdict) && p.sendAlert(ctx, analyzed) {
			report.Alerted++
		}
	}

	if report.Unscored > 0 {
		p.logger.Warn("documents left unscored, model unavailable", "count", report.Unscored)
	}
	p.logger.Info("pipeline run finished",
		"collected", report.Collected,
		"duplicates", report.Duplicates,
		"analyzed", report.Analyzed,
		"threats", report.Threats,
		"alerted", report.Alerted,
	)
	return report, nil
}

func (p *Pipeline) unseen(ctx context.Context, docs []domain.Document) ([]domain.Document, error) {
	seen := make(map[string]bool, len(docs))
	ids := make([]string, 0, len(docs))
	batch := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		doc = doc.WithID()
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		ids = append(ids, doc.ID)
		batch = append(batch, doc)
	}

	if p.repository == nil || len(ids) == 0 {
		return batch, nil
	}

	stored, err := p.repository.AlreadyProcessed(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load processed: %w", err)
	}

	fresh := batch[:0]
	for _, doc := range batch {
		if !stored[doc.ID] {
			fresh = append(fresh, doc)
		}
	}
	return fresh, nil
}

func (p *Pipeline) shouldAlert(v domain.Verdict) bool {
	return p.alerts != nil && v.IsThreat && v.Confidence > p.alertThreshold
}

func (p *Pipeline) sendAlert(ctx context.Context, doc domain.AnalyzedDocument) bool {
	if err := p.alerts.Send(ctx, domain.NewAlert(doc)); err != nil {
		p.alertsOut.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
		p.logger.Error("alert delivery failed", "document", doc.Document.ID, "error", err)
		return false
	}
	p.alertsOut.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "sent")))
	return true
}
