// Package classify implements the threat classification pipeline: tf-idf feature
// extraction, a bagged online classifier, training, and feedback retraining.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/textproc"
	"ThreatScanner/pkg/logger"
)

// State is the lifecycle position of a Pipeline.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "invalid"
	}
}

// PipelineConfig holds the policy knobs of the pipeline.
type PipelineConfig struct {
	Extractor  ExtractorConfig
	Thresholds Thresholds
	// Bootstrap trains a model from BootstrapExamples when no artifacts can be loaded.
	Bootstrap         bool
	BootstrapExamples []domain.TrainingExample
}

// Pipeline owns the current artifact pair and answers Predict calls. Reads go
// through an atomic pointer; train and feedback updates are serialized and
// publish a complete new Model in a single swap.
type Pipeline struct {
	store   ports.ArtifactStore
	trainer *Trainer
	cfg     PipelineConfig
	logger  *slog.Logger

	state    atomic.Int32
	model    atomic.Pointer[Model]
	updateMu sync.Mutex
}

// NewPipeline wires the store and trainer; call Load before serving.
func NewPipeline(store ports.ArtifactStore, trainer *Trainer, cfg PipelineConfig, log *slog.Logger) *Pipeline {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.Bootstrap && len(cfg.BootstrapExamples) == 0 {
		cfg.BootstrapExamples = BootstrapExamples()
	}
	return &Pipeline{
		store:   store,
		trainer: trainer,
		cfg:     cfg,
		logger:  logger.Component(log, "classify.pipeline"),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Current returns the published model, or nil.
func (p *Pipeline) Current() *Model {
	return p.model.Load()
}

// Load reads the persisted pair. When that fails and bootstrap is enabled, it
// trains and persists the embedded sample model instead; otherwise the pipeline
// becomes unavailable and the load error is returned.
func (p *Pipeline) Load(ctx context.Context) error {
	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	p.state.Store(int32(StateLoading))

	model, err := p.loadStored(ctx)
	if err == nil {
		p.publish(model)
		p.logger.Info("model loaded", "version", model.Version, "revision", model.Revision,
			"features", model.Extractor.Vocabulary().Size())
		return nil
	}

	if !p.cfg.Bootstrap || p.trainer == nil {
		p.state.Store(int32(StateUnavailable))
		p.logger.Error("model unavailable", "error", err)
		return err
	}

	p.logger.Warn("stored model unavailable, training bootstrap model",
		"error", err, "examples", len(p.cfg.BootstrapExamples))

	model, _, trainErr := p.trainer.Train(ctx, p.cfg.BootstrapExamples)
	if trainErr != nil {
		p.state.Store(int32(StateUnavailable))
		p.logger.Error("bootstrap training failed", "error", trainErr)
		return errors.Join(err, trainErr)
	}

	p.publish(model)
	p.logger.Info("bootstrap model ready", "version", model.Version)
	return nil
}

// Refresh publishes the stored pair when it differs from the current model,
// picking up a train or feedback run made by another process sharing the
// artifact store. It reports whether the model changed. A failed read keeps
// the current model.
func (p *Pipeline) Refresh(ctx context.Context) (bool, error) {
	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	model, err := p.loadStored(ctx)
	if err != nil {
		return false, err
	}
	if cur := p.model.Load(); cur != nil && cur.Version == model.Version && cur.Revision == model.Revision {
		return false, nil
	}

	p.publish(model)
	p.logger.Info("model refreshed from store", "version", model.Version, "revision", model.Revision)
	return true, nil
}

func (p *Pipeline) loadStored(ctx context.Context) (*Model, error) {
	if p.store == nil {
		return nil, apperr.Wrap(apperr.ErrArtifactIO, "load artifacts", apperr.ErrArtifactNotFound)
	}
	pair, err := p.store.Load(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrArtifactIO, "load artifacts", err)
	}
	return DecodeModel(pair, p.cfg.Extractor)
}

// Predict classifies raw text. It never fails: without a usable model it returns
// the unknown sentinel verdict.
func (p *Pipeline) Predict(raw string) domain.Verdict {
	_, verdict := p.Classify(raw)
	return verdict
}

// Classify is Predict that also returns the clean text it scored.
func (p *Pipeline) Classify(raw string) (string, domain.Verdict) {
	clean := textproc.Clean(raw)

	model := p.model.Load()
	if p.State() != StateReady || model == nil {
		p.logger.Warn("prediction requested without a model", "state", p.State().String())
		return clean, domain.UnavailableVerdict()
	}

	prob, err := model.Score(clean)
	if err != nil {
		p.logger.Error("prediction failed", "version", model.Version, "error", err)
		return clean, domain.UnavailableVerdict()
	}

	return clean, p.cfg.Thresholds.Verdict(prob)
}

// Train fits and persists a fresh model, then publishes it. On failure the
// current model and stored artifacts are left as they were.
func (p *Pipeline) Train(ctx context.Context, examples []domain.TrainingExample) (Report, error) {
	if p.trainer == nil {
		return Report{}, apperr.New(apperr.ErrConfiguration, "train", "no trainer configured")
	}

	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	model, report, err := p.trainer.Train(ctx, examples)
	if err != nil {
		return report, err
	}
	p.publish(model)
	return report, nil
}

func (p *Pipeline) publish(m *Model) {
	p.model.Store(m)
	p.state.Store(int32(StateReady))
}
