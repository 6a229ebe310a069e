package domain

import "time"

// ThreatClass is the severity tier derived from the threat probability.
type ThreatClass string

const (
	ClassBenign     ThreatClass = "benign"
	ClassSuspicious ThreatClass = "suspicious"
	ClassCritical   ThreatClass = "critical"
	ClassUnknown    ThreatClass = "unknown"
)

// Verdict is the classification output for one document.
type Verdict struct {
	IsThreat    bool        `json:"is_threat"`
	Confidence  float64     `json:"confidence"`
	ThreatClass ThreatClass `json:"threat_class"`
}

// UnavailableVerdict is returned while no model is loaded.
func UnavailableVerdict() Verdict {
	return Verdict{IsThreat: false, Confidence: 0, ThreatClass: ClassUnknown}
}

// TrainingExample is a labeled text used to fit a model.
type TrainingExample struct {
	Text  string
	Label bool
}

// FeedbackRecord is an analyst correction waiting to be applied.
type FeedbackRecord struct {
	ID           int64
	CleanText    string
	AnalystLabel bool
	// Value is the stored feedback the label was read from. Clearing matches
	// on it so a label changed after reading survives.
	Value string
}

// Feedback values stored by analysts.
const (
	FeedbackConfirmed     = "confirmed"
	FeedbackFalsePositive = "false_positive"
)

// FeedbackLabel maps a stored feedback value to a training target.
func FeedbackLabel(value string) bool {
	return value == FeedbackConfirmed
}

// ArtifactPair is the serialized vocabulary and classifier, versioned together.
type ArtifactPair struct {
	Version    string
	Revision   int
	Vocabulary []byte
	Classifier []byte
	SavedAt    time.Time
}
