package classify

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/textproc"
	"ThreatScanner/pkg/logger"
)

// TrainerConfig controls a full training run.
type TrainerConfig struct {
	Extractor       ExtractorConfig
	Ensemble        EnsembleConfig
	HoldoutFraction float64
	Seed            int64
	// Thresholds decide held-out predictions; keep them equal to the pipeline's.
	Thresholds      Thresholds
}

// DefaultTrainerConfig uses an 80/20 split with seed 42.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Extractor:       DefaultExtractorConfig(),
		Ensemble:        DefaultEnsembleConfig(),
		HoldoutFraction: 0.2,
		Seed:            42,
	}
}

// Trainer fits a new artifact pair from labeled examples and persists it.
type Trainer struct {
	store  ports.ArtifactStore
	cfg    TrainerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewTrainer wires the artifact store. A nil store keeps models in memory only.
func NewTrainer(store ports.ArtifactStore, cfg TrainerConfig, log *slog.Logger) *Trainer {
	if cfg.HoldoutFraction < 0 || cfg.HoldoutFraction >= 1 {
		cfg.HoldoutFraction = 0.2
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Trainer{
		store:  store,
		cfg:    cfg,
		logger: logger.Component(log, "classify.trainer"),
		now:    time.Now,
	}
}

// Train splits, fits, evaluates and persists. Evaluation is logged but never
// blocks persistence. Nothing is saved unless every step succeeds.
func (t *Trainer) Train(ctx context.Context, examples []domain.TrainingExample) (*Model, Report, error) {
	if err := validateExamples(examples); err != nil {
		return nil, Report{}, err
	}

	train, heldOut := stratifiedSplit(examples, t.cfg.HoldoutFraction, t.cfg.Seed)

	corpus := make([]string, len(train))
	labels := make([]bool, len(train))
	for i, ex := range train {
		corpus[i] = textproc.Clean(ex.Text)
		labels[i] = ex.Label
	}

	extractor := NewFeatureExtractor(t.cfg.Extractor)
	if _, err := extractor.Fit(corpus); err != nil {
		return nil, Report{}, err
	}

	features := make([][]float64, len(corpus))
	for i, text := range corpus {
		vec, err := extractor.Transform(text)
		if err != nil {
			return nil, Report{}, err
		}
		features[i] = vec
	}

	ensembleCfg := t.cfg.Ensemble
	ensembleCfg.Seed = t.cfg.Seed
	classifier := NewEnsemble(ensembleCfg)
	if err := classifier.Fit(features, labels); err != nil {
		return nil, Report{}, err
	}

	model := &Model{
		Version:    uuid.NewString(),
		Extractor:  extractor,
		Classifier: classifier,
		SavedAt:    t.now().UTC(),
	}

	report := Evaluate(model, heldOut, t.cfg.Thresholds)
	report.TrainSize = len(train)
	t.logReport(model, report)

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	if t.store == nil {
		t.logger.Debug("no artifact store configured, model kept in memory", "version", model.Version)
		return model, report, nil
	}

	pair, err := model.Encode()
	if err != nil {
		return nil, report, err
	}
	if err := t.store.Save(ctx, pair); err != nil {
		return nil, report, apperr.Wrap(apperr.ErrArtifactIO, "save artifacts", err)
	}

	t.logger.Info("model persisted", "version", model.Version)
	return model, report, nil
}

func (t *Trainer) logReport(model *Model, r Report) {
	if r.HeldOutSize == 0 {
		t.logger.Warn("held-out split is empty, skipping evaluation",
			"version", model.Version, "train", r.TrainSize)
		return
	}
	t.logger.Info("model evaluated",
		"version", model.Version,
		"features", model.Extractor.Vocabulary().Size(),
		"train", r.TrainSize,
		"held_out", r.HeldOutSize,
		"accuracy", r.Accuracy,
		"threat_precision", r.Threat.Precision,
		"threat_recall", r.Threat.Recall,
		"benign_precision", r.Benign.Precision,
		"benign_recall", r.Benign.Recall,
		"confusion", r.Confusion,
	)
}

func validateExamples(examples []domain.TrainingExample) error {
	if len(examples) < 2 {
		return apperr.New(apperr.ErrInsufficientData, "train", "need at least 2 examples, got %d", len(examples))
	}
	var positives int
	for _, ex := range examples {
		if ex.Label {
			positives++
		}
	}
	if positives == 0 || positives == len(examples) {
		return apperr.New(apperr.ErrInsufficientData, "train", "both threat and benign examples are required")
	}
	return nil
}

// stratifiedSplit holds out the same fraction of each class, always leaving at
// least one example of each class for training.
func stratifiedSplit(examples []domain.TrainingExample, fraction float64, seed int64) (train, heldOut []domain.TrainingExample) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))

	var byClass [2][]domain.TrainingExample
	for _, ex := range examples {
		if ex.Label {
			byClass[1] = append(byClass[1], ex)
		} else {
			byClass[0] = append(byClass[0], ex)
		}
	}

	for _, group := range byClass {
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })

		hold := int(math.Floor(fraction * float64(len(group))))
		if hold >= len(group) {
			hold = len(group) - 1
		}
		heldOut = append(heldOut, group[:hold]...)
		train = append(train, group[hold:]...)
	}
	return train, heldOut
}
