package classify

import (
	"encoding/json"
	"fmt"
	"time"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
)

// Model is one published artifact pair. Nothing mutates a Model after it has been
// swapped into a Pipeline; updates always produce a new one.
type Model struct {
	Version    string
	Revision   int
	Extractor  *FeatureExtractor
	Classifier *Ensemble
	SavedAt    time.Time
}

// Score returns the threat probability for already-clean text.
func (m *Model) Score(clean string) (float64, error) {
	vec, err := m.Extractor.Transform(clean)
	if err != nil {
		return 0, err
	}
	return m.Classifier.PredictProba(vec)
}

// Encode serializes both artifacts for the store.
func (m *Model) Encode() (domain.ArtifactPair, error) {
	if m.Extractor == nil || m.Extractor.Vocabulary() == nil {
		return domain.ArtifactPair{}, apperr.Wrap(apperr.ErrUnfittedExtractor, "encode model", nil)
	}
	if !m.Classifier.Fitted() {
		return domain.ArtifactPair{}, apperr.Wrap(apperr.ErrUnfittedClassifier, "encode model", nil)
	}

	vocab, err := json.Marshal(m.Extractor.Vocabulary())
	if err != nil {
		return domain.ArtifactPair{}, fmt.Errorf("encode vocabulary: %w", err)
	}
	clf, err := json.Marshal(m.Classifier)
	if err != nil {
		return domain.ArtifactPair{}, fmt.Errorf("encode classifier: %w", err)
	}

	return domain.ArtifactPair{
		Version:    m.Version,
		Revision:   m.Revision,
		Vocabulary: vocab,
		Classifier: clf,
		SavedAt:    m.SavedAt,
	}, nil
}

// DecodeModel rebuilds a Model from a stored pair. The classifier must have been
// trained against this exact vocabulary.
func DecodeModel(pair domain.ArtifactPair, cfg ExtractorConfig) (*Model, error) {
	var vocab Vocabulary
	if err := json.Unmarshal(pair.Vocabulary, &vocab); err != nil {
		return nil, apperr.Wrap(apperr.ErrArtifactIO, "decode vocabulary", err)
	}
	clf := &Ensemble{}
	if err := json.Unmarshal(pair.Classifier, clf); err != nil {
		return nil, apperr.Wrap(apperr.ErrArtifactIO, "decode classifier", err)
	}
	if clf.Dim() != vocab.Size() {
		return nil, apperr.New(apperr.ErrArtifactIO, "decode model",
			"classifier expects %d features but vocabulary has %d", clf.Dim(), vocab.Size())
	}

	return &Model{
		Version:    pair.Version,
		Revision:   pair.Revision,
		Extractor:  NewFeatureExtractorFromVocabulary(cfg, &vocab),
		Classifier: clf,
		SavedAt:    pair.SavedAt,
	}, nil
}

// Thresholds map a threat probability onto the severity tiers.
type Thresholds struct {
	Threat   float64
	Critical float64
}

// DefaultThresholds are the 0.5 / 0.7 cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{Threat: 0.5, Critical: 0.7}
}

// Verdict maps p to a verdict: critical above Critical, suspicious from Threat
// up to and including Critical, benign below Threat.
func (t Thresholds) Verdict(p float64) domain.Verdict {
	isThreat := p >= t.Threat

	class := domain.ClassBenign
	switch {
	case p > t.Critical:
		class = domain.ClassCritical
	case isThreat:
		class = domain.ClassSuspicious
	}

	confidence := 1 - p
	if isThreat {
		confidence = p
	}

	return domain.Verdict{IsThreat: isThreat, Confidence: confidence, ThreatClass: class}
}
