package classify

import (
	"context"
	"sync"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	pair    *domain.ArtifactPair
	saves   int
	loadErr error
	saveErr error
}

func (s *memStore) Load(ctx context.Context) (domain.ArtifactPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return domain.ArtifactPair{}, s.loadErr
	}
	if s.pair == nil {
		return domain.ArtifactPair{}, apperr.ErrArtifactNotFound
	}
	return *s.pair, nil
}

func (s *memStore) Save(ctx context.Context, pair domain.ArtifactPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := pair
	cp.Vocabulary = append([]byte(nil), pair.Vocabulary...)
	cp.Classifier = append([]byte(nil), pair.Classifier...)
	s.pair = &cp
	s.saves++
	return nil
}

func (s *memStore) snapshot() (domain.ArtifactPair, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return domain.ArtifactPair{}, s.saves
	}
	return *s.pair, s.saves
}

type fakeFeedback struct {
	pending []domain.FeedbackRecord
	cleared []int64
	err     error
}

func (f *fakeFeedback) PendingFeedback(ctx context.Context) ([]domain.FeedbackRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pending, nil
}

// ClearFeedback drops pending rows whose value still matches what was applied.
func (f *fakeFeedback) ClearFeedback(ctx context.Context, applied []domain.FeedbackRecord) error {
	done := make(map[int64]string, len(applied))
	for _, rec := range applied {
		done[rec.ID] = rec.Value
	}
	kept := f.pending[:0:0]
	for _, rec := range f.pending {
		if v, ok := done[rec.ID]; ok && v == rec.Value {
			f.cleared = append(f.cleared, rec.ID)
			continue
		}
		kept = append(kept, rec)
	}
	f.pending = kept
	return nil
}

func (f *fakeFeedback) RecordFeedback(ctx context.Context, externalID string, confirmed bool) error {
	return nil
}

func syntheticExamples() []domain.TrainingExample {
	return []domain.TrainingExample{
		{Text: "phishing email targeting bank customers", Label: true},
		{Text: "weekly newsletter about office snacks", Label: false},
		{Text: "urgent phishing alert: confirm your bank password", Label: true},
		{Text: "please review the attached lunch menu", Label: false},
		{Text: "attackers steal bank password with phishing kit", Label: true},
		{Text: "team lunch menu for friday is attached", Label: false},
		{Text: "ransomware attack encrypts bank servers", Label: true},
		{Text: "office snacks order for the weekly team meeting", Label: false},
		{Text: "malware steals password and credentials from bank customers", Label: true},
		{Text: "please review the attached newsletter draft", Label: false},
		{Text: "urgent: confirm your account password or it will be locked", Label: true},
		{Text: "friday team meeting moved to the big conference room", Label: false},
		{Text: "credential phishing campaign impersonates bank login page", Label: true},
		{Text: "lunch menu update: pizza and salad for the office", Label: false},
		{Text: "ransomware strain exploits unpatched bank servers", Label: true},
		{Text: "weekly office newsletter with team birthdays", Label: false},
		{Text: "confirm your bank account now, urgent password warning", Label: true},
		{Text: "review the attached agenda for the team offsite", Label: false},
		{Text: "malware campaign steals bank passwords", Label: true},
		{Text: "coffee machine installed in the office kitchen for the team", Label: false},
	}
}

func newTestPipeline(store *memStore, bootstrap bool) *Pipeline {
	trainer := NewTrainer(store, DefaultTrainerConfig(), nil)
	return NewPipeline(store, trainer, PipelineConfig{
		Extractor:  DefaultExtractorConfig(),
		Thresholds: DefaultThresholds(),
		Bootstrap:  bootstrap,
	}, nil)
}
