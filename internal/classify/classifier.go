package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"ThreatScanner/internal/apperr"
)

// EnsembleConfig controls the bagged classifier.
type EnsembleConfig struct {
	Members       int     `json:"members"`
	Epochs        int     `json:"epochs"`
	PartialEpochs int     `json:"partial_epochs"`
	LearningRate  float64 `json:"learning_rate"`
	Seed          int64   `json:"seed"`
}

// DefaultEnsembleConfig returns the settings used when config leaves them empty.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		Members:       25,
		Epochs:        40,
		PartialEpochs: 10,
		LearningRate:  0.5,
		Seed:          42,
	}
}

func (c EnsembleConfig) normalized() EnsembleConfig {
	def := DefaultEnsembleConfig()
	if c.Members <= 0 {
		c.Members = def.Members
	}
	if c.Epochs <= 0 {
		c.Epochs = def.Epochs
	}
	if c.PartialEpochs <= 0 {
		c.PartialEpochs = def.PartialEpochs
	}
	if c.LearningRate <= 0 {
		c.LearningRate = def.LearningRate
	}
	return c
}

type member struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func (m *member) logit(row sparseRow) float64 {
	z := m.Bias
	for k, idx := range row.idx {
		z += m.Weights[idx] * row.val[k]
	}
	return z
}

func (m *member) step(row sparseRow, target, weight, lr float64) {
	p := sigmoid(m.logit(row))
	g := lr * weight * (target - p)
	for k, idx := range row.idx {
		m.Weights[idx] += g * row.val[k]
	}
	m.Bias += g
}

// Ensemble is a bootstrap-aggregated set of online logistic models. The threat
// probability is the share of members that vote threat. Each member can keep
// learning from new batches, which is what feedback retraining relies on.
type Ensemble struct {
	cfg          EnsembleConfig
	dim          int
	classWeights [2]float64
	members      []member
}

// NewEnsemble returns an unfitted classifier.
func NewEnsemble(cfg EnsembleConfig) *Ensemble {
	return &Ensemble{cfg: cfg.normalized()}
}

// Fitted reports whether the ensemble has parameters.
func (e *Ensemble) Fitted() bool {
	return e != nil && len(e.members) > 0
}

// Dim is the expected feature vector length.
func (e *Ensemble) Dim() int {
	return e.dim
}

// Fit trains every member on its own bootstrap resample. The minority class is
// up-weighted by n / (2 * n_class).
func (e *Ensemble) Fit(features [][]float64, labels []bool) error {
	if len(features) != len(labels) {
		return fmt.Errorf("fit classifier: %d vectors but %d labels", len(features), len(labels))
	}
	if len(features) < 2 {
		return apperr.New(apperr.ErrInsufficientData, "fit classifier", "need at least 2 examples, got %d", len(features))
	}

	var positives int
	for _, l := range labels {
		if l {
			positives++
		}
	}
	n := len(labels)
	if positives == 0 || positives == n {
		return apperr.New(apperr.ErrInsufficientData, "fit classifier", "both classes are required")
	}

	dim := len(features[0])
	rows, err := toSparse(features, dim)
	if err != nil {
		return fmt.Errorf("fit classifier: %w", err)
	}

	classWeights := [2]float64{
		float64(n) / (2 * float64(n-positives)),
		float64(n) / (2 * float64(positives)),
	}

	members := make([]member, e.cfg.Members)
	for m := range members {
		rng := rand.New(rand.NewPCG(uint64(e.cfg.Seed), uint64(m)))

		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}

		mb := member{Weights: make([]float64, dim)}
		for epoch := 0; epoch < e.cfg.Epochs; epoch++ {
			rng.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
			for _, i := range sample {
				target, weight := targetFor(labels[i], classWeights)
				mb.step(rows[i], target, weight, e.cfg.LearningRate)
			}
		}
		members[m] = mb
	}

	e.dim = dim
	e.classWeights = classWeights
	e.members = members
	return nil
}

// PartialFit continues training every member on a new batch without resetting
// what it already learned. Class weights from the initial fit are reused.
func (e *Ensemble) PartialFit(features [][]float64, labels []bool) error {
	if !e.Fitted() {
		return apperr.Wrap(apperr.ErrUnfittedClassifier, "partial fit", nil)
	}
	if len(features) != len(labels) {
		return fmt.Errorf("partial fit: %d vectors but %d labels", len(features), len(labels))
	}
	if len(features) == 0 {
		return nil
	}

	rows, err := toSparse(features, e.dim)
	if err != nil {
		return fmt.Errorf("partial fit: %w", err)
	}

	for m := range e.members {
		for epoch := 0; epoch < e.cfg.PartialEpochs; epoch++ {
			for i, row := range rows {
				target, weight := targetFor(labels[i], e.classWeights)
				e.members[m].step(row, target, weight, e.cfg.LearningRate)
			}
		}
	}
	return nil
}

// PredictProba returns the fraction of members voting threat.
func (e *Ensemble) PredictProba(vector []float64) (float64, error) {
	if !e.Fitted() {
		return 0, apperr.Wrap(apperr.ErrUnfittedClassifier, "predict", nil)
	}
	if len(vector) != e.dim {
		return 0, fmt.Errorf("predict: vector has %d features, classifier expects %d", len(vector), e.dim)
	}

	row := sparseOf(vector)
	votes := 0
	for i := range e.members {
		if e.members[i].logit(row) > 0 {
			votes++
		}
	}
	return float64(votes) / float64(len(e.members)), nil
}

// Predict reports whether the vector is classified as a threat.
func (e *Ensemble) Predict(vector []float64) (bool, error) {
	p, err := e.PredictProba(vector)
	if err != nil {
		return false, err
	}
	return p >= 0.5, nil
}

// Clone deep-copies the parameters so updates can be built off to the side.
func (e *Ensemble) Clone() *Ensemble {
	out := &Ensemble{cfg: e.cfg, dim: e.dim, classWeights: e.classWeights}
	out.members = make([]member, len(e.members))
	for i, m := range e.members {
		out.members[i] = member{Weights: append([]float64(nil), m.Weights...), Bias: m.Bias}
	}
	return out
}

type ensembleJSON struct {
	Config       EnsembleConfig `json:"config"`
	Dim          int            `json:"dim"`
	ClassWeights [2]float64     `json:"class_weights"`
	Members      []member       `json:"members"`
}

// MarshalJSON encodes the classifier artifact.
func (e *Ensemble) MarshalJSON() ([]byte, error) {
	return json.Marshal(ensembleJSON{
		Config:       e.cfg,
		Dim:          e.dim,
		ClassWeights: e.classWeights,
		Members:      e.members,
	})
}

// UnmarshalJSON decodes a classifier artifact.
func (e *Ensemble) UnmarshalJSON(data []byte) error {
	var raw ensembleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Members) == 0 {
		return fmt.Errorf("classifier artifact has no members")
	}
	for i, m := range raw.Members {
		if len(m.Weights) != raw.Dim {
			return fmt.Errorf("member %d has %d weights, expected %d", i, len(m.Weights), raw.Dim)
		}
	}
	e.cfg = raw.Config.normalized()
	e.dim = raw.Dim
	e.classWeights = raw.ClassWeights
	e.members = raw.Members
	return nil
}

type sparseRow struct {
	idx []int
	val []float64
}

func sparseOf(vector []float64) sparseRow {
	var row sparseRow
	for i, v := range vector {
		if v != 0 {
			row.idx = append(row.idx, i)
			row.val = append(row.val, v)
		}
	}
	return row
}

func toSparse(features [][]float64, dim int) ([]sparseRow, error) {
	rows := make([]sparseRow, len(features))
	for i, vec := range features {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has %d features, expected %d", i, len(vec), dim)
		}
		rows[i] = sparseOf(vec)
	}
	return rows, nil
}

func targetFor(label bool, classWeights [2]float64) (float64, float64) {
	if label {
		return 1, classWeights[1]
	}
	return 0, classWeights[0]
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
