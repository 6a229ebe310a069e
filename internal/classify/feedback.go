package classify

import (
	"context"
	"log/slog"
	"time"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

// FeedbackRetrainer folds analyst corrections into the current classifier
// without refitting the vocabulary.
type FeedbackRetrainer struct {
	pipeline *Pipeline
	feedback ports.FeedbackStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewFeedbackRetrainer binds a pipeline to the store holding analyst labels.
func NewFeedbackRetrainer(pipeline *Pipeline, feedback ports.FeedbackStore, log *slog.Logger) *FeedbackRetrainer {
	return &FeedbackRetrainer{
		pipeline: pipeline,
		feedback: feedback,
		logger:   logger.Component(log, "classify.feedback"),
		now:      time.Now,
	}
}

// ApplyFeedback partially fits a copy of the current classifier on the records,
// persists it under the same version with the next revision, and publishes it.
// An empty batch is a no-op that returns the current model.
func (r *FeedbackRetrainer) ApplyFeedback(ctx context.Context, records []domain.FeedbackRecord) (*Model, error) {
	if len(records) == 0 {
		return r.pipeline.Current(), nil
	}

	p := r.pipeline
	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	current := p.Current()
	if current == nil || p.State() != StateReady {
		return nil, apperr.Wrap(apperr.ErrUnfittedClassifier, "apply feedback", nil)
	}

	features := make([][]float64, len(records))
	labels := make([]bool, len(records))
	for i, rec := range records {
		vec, err := current.Extractor.Transform(rec.CleanText)
		if err != nil {
			return nil, err
		}
		features[i] = vec
		labels[i] = rec.AnalystLabel
	}

	classifier := current.Classifier.Clone()
	if err := classifier.PartialFit(features, labels); err != nil {
		return nil, err
	}

	next := &Model{
		Version:    current.Version,
		Revision:   current.Revision + 1,
		Extractor:  current.Extractor,
		Classifier: classifier,
		SavedAt:    r.now().UTC(),
	}

	if p.store != nil {
		pair, err := next.Encode()
		if err != nil {
			return nil, err
		}
		if err := p.store.Save(ctx, pair); err != nil {
			return nil, apperr.Wrap(apperr.ErrArtifactIO, "save artifacts", err)
		}
	}

	p.publish(next)
	r.logger.Info("feedback applied", "version", next.Version, "revision", next.Revision, "records", len(records))
	return next, nil
}

// Run applies every pending feedback row and clears those rows once the updated
// model is stored. It returns how many records were applied.
func (r *FeedbackRetrainer) Run(ctx context.Context) (int, error) {
	if r.feedback == nil {
		return 0, apperr.New(apperr.ErrConfiguration, "apply feedback", "no feedback store configured")
	}

	records, err := r.feedback.PendingFeedback(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		r.logger.Debug("no pending feedback")
		return 0, nil
	}

	if _, err := r.ApplyFeedback(ctx, records); err != nil {
		return 0, err
	}

	if err := r.feedback.ClearFeedback(ctx, records); err != nil {
		return len(records), err
	}
	return len(records), nil
}
