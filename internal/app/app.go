package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/classify"
	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/dataset"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/infrastructure/alert"
	"ThreatScanner/internal/infrastructure/feeds"
	"ThreatScanner/internal/infrastructure/scheduler"
	"ThreatScanner/internal/infrastructure/storage"
	"ThreatScanner/internal/logging"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/usecase"
	"ThreatScanner/pkg/logger"
)

const stopTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db         *sql.DB
	repository *storage.PostgresRepository

	classifier *classify.Pipeline
	feedback   *classify.FeedbackRetrainer
	pipeline   *usecase.Pipeline
	scheduler  *usecase.Scheduler
}

// New builds the full object graph. Nothing touches the network or the artifact
// file until a command runs, so any number of commands can share one config
// with a running serve.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	artifacts, err := storage.NewArtifactStore(cfg.Artifacts.Path)
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrConfiguration, "open database", err)
		}
		a.db = db
		a.repository = storage.NewPostgresRepository(db)
	} else {
		baseLogger.Warn("database DSN is empty; results are not persisted and feedback is disabled")
	}

	thresholds := classify.Thresholds{
		Threat:   cfg.Model.ThreatThreshold,
		Critical: cfg.Model.CriticalThreshold,
	}
	extractor := classify.ExtractorConfig{
		MaxFeatures: cfg.Model.MaxFeatures,
		MaxNGram:    cfg.Model.MaxNGram,
		StopWords:   classify.EnglishStopWords(),
	}
	trainer := classify.NewTrainer(artifacts, classify.TrainerConfig{
		Extractor: extractor,
		Ensemble: classify.EnsembleConfig{
			Members:       cfg.Model.Members,
			Epochs:        cfg.Model.Epochs,
			PartialEpochs: cfg.Model.PartialEpochs,
			LearningRate:  cfg.Model.LearningRate,
			Seed:          cfg.Model.Seed,
		},
		HoldoutFraction: cfg.Model.HoldoutFraction,
		Seed:            cfg.Model.Seed,
		Thresholds:      thresholds,
	}, baseLogger)

	a.classifier = classify.NewPipeline(artifacts, trainer, classify.PipelineConfig{
		Extractor:  extractor,
		Thresholds: thresholds,
		Bootstrap:  cfg.Model.Bootstrap,
	}, baseLogger)

	var feedbackStore ports.FeedbackStore
	var repo ports.ThreatRepository
	if a.repository != nil {
		feedbackStore = a.repository
		repo = a.repository
	}
	a.feedback = classify.NewFeedbackRetrainer(a.classifier, feedbackStore, baseLogger)

	registry := collector.NewRegistry()
	registry.Register(feeds.NewRSSCollector(nil, baseLogger))
	registry.Register(feeds.NewForumCollector(nil, baseLogger))
	registry.Register(feeds.NewOTXCollector(cfg.OTX.BaseURL, cfg.OTX.APIKey, nil, baseLogger))
	source := feeds.NewStrategySource(registry, cfg.Sources, cfg.Retry, baseLogger)

	var alerts ports.AlertSender
	if fan := buildAlerts(cfg.Alerts, baseLogger); fan.Len() > 0 {
		alerts = fan
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:         source,
		Repository:     repo,
		Classifier:     a.classifier,
		Alerts:         alerts,
		AlertThreshold: cfg.Alerts.ConfidenceThreshold,
		Logger:         baseLogger,
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger)
	var runner usecase.FeedbackRunner
	if feedbackStore != nil {
		runner = a.feedback
	}
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, a.classifier, runner, baseLogger)

	return a, nil
}

func buildAlerts(cfg config.AlertsConfig, log *slog.Logger) *alert.Fanout {
	lg := logger.Component(log, "alerts")
	var channels []alert.Channel

	if sender, err := alert.NewEmailSender(cfg.Email); err != nil {
		lg.Warn("email alerts disabled", "error", err)
	} else {
		channels = append(channels, alert.Channel{Name: "email", Sender: sender})
	}

	if sender, err := alert.NewSplunkSender(cfg.Splunk, log); err != nil {
		lg.Warn("splunk alerts disabled", "error", err)
	} else {
		channels = append(channels, alert.Channel{Name: "splunk", Sender: sender})
	}

	if sender, err := alert.NewTelegramSender(cfg.Telegram); err != nil {
		lg.Warn("telegram alerts disabled", "error", err)
	} else {
		channels = append(channels, alert.Channel{Name: "telegram", Sender: sender})
	}

	return alert.NewFanout(log, channels...)
}

// Close releases the database pool.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Init loads the model. A failure leaves the classifier unavailable; callers
// decide whether that is fatal.
func (a *Application) Init(ctx context.Context) error {
	if err := a.classifier.Load(ctx); err != nil {
		return err
	}
	if m := a.classifier.Current(); m != nil {
		a.logger.Info("model ready", "version", m.Version, "revision", m.Revision)
	}
	return nil
}

// RunOnce performs a single collection pass.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.RunOnce(ctx)
}

// Serve runs a pass immediately, then on the cron schedule until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, "serve", err)
	}

	a.scheduler.Tick(ctx, time.Now().In(a.cfg.Scheduler.Location()))
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Train fits a new model from the CSV at path (the configured dataset when empty).
func (a *Application) Train(ctx context.Context, path string) (classify.Report, error) {
	if path == "" {
		path = a.cfg.Dataset.Path
	}
	examples, _, err := dataset.LoadFile(path, dataset.Options{
		TextColumn:     a.cfg.Dataset.TextColumn,
		SeverityColumn: a.cfg.Dataset.SeverityColumn,
		Threshold:      a.cfg.Dataset.SeverityThreshold,
	}, a.logger)
	if err != nil {
		return classify.Report{}, err
	}
	return a.classifier.Train(ctx, examples)
}

// ApplyFeedback folds pending analyst labels into the current model.
func (a *Application) ApplyFeedback(ctx context.Context) (int, error) {
	return a.feedback.Run(ctx)
}

// MarkFeedback records an analyst label for a stored document.
func (a *Application) MarkFeedback(ctx context.Context, externalID string, confirmed bool) error {
	if a.repository == nil {
		return apperr.New(apperr.ErrConfiguration, "mark feedback", "database is not configured")
	}
	return a.repository.RecordFeedback(ctx, externalID, confirmed)
}

// Predict classifies one text with the current model.
func (a *Application) Predict(text string) domain.Verdict {
	return a.classifier.Predict(text)
}

// ListThreats returns the newest stored verdicts.
func (a *Application) ListThreats(ctx context.Context, limit int) ([]domain.StoredThreat, error) {
	if a.repository == nil {
		return nil, apperr.New(apperr.ErrConfiguration, "list threats", "database is not configured")
	}
	return a.repository.RecentThreats(ctx, limit)
}
