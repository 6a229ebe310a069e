package classify

import (
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/textproc"
)

// ClassMetrics are the per-class figures of a held-out evaluation.
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarizes a training run. Confusion is indexed [actual][predicted]
// with 0 = benign and 1 = threat.
type Report struct {
	TrainSize   int
	HeldOutSize int
	Accuracy    float64
	Threat      ClassMetrics
	Benign      ClassMetrics
	Confusion   [2][2]int
}

// Evaluate scores the model on labeled examples. Examples that fail to score
// count as benign predictions. A prediction is a threat when p reaches
// t.Threat, the same cut-off Predict uses.
func Evaluate(m *Model, examples []domain.TrainingExample, t Thresholds) Report {
	if t == (Thresholds{}) {
		t = DefaultThresholds()
	}
	r := Report{HeldOutSize: len(examples)}
	if len(examples) == 0 {
		return r
	}

	for _, ex := range examples {
		p, err := m.Score(textproc.Clean(ex.Text))
		predicted := err == nil && p >= t.Threat
		r.Confusion[boolIndex(ex.Label)][boolIndex(predicted)]++
	}

	correct := r.Confusion[0][0] + r.Confusion[1][1]
	r.Accuracy = float64(correct) / float64(len(examples))
	r.Benign = classMetrics(r.Confusion, 0)
	r.Threat = classMetrics(r.Confusion, 1)
	return r
}

func classMetrics(cm [2][2]int, class int) ClassMetrics {
	other := 1 - class
	tp := cm[class][class]
	fp := cm[other][class]
	fn := cm[class][other]

	m := ClassMetrics{Support: tp + fn}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func boolIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}
