package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/textproc"
)

func trainedPipeline(t *testing.T) (*Pipeline, *memStore) {
	t.Helper()

	store := &memStore{}
	p := newTestPipeline(store, false)
	_, err := p.Train(context.Background(), syntheticExamples())
	require.NoError(t, err)
	return p, store
}

func TestApplyFeedbackEmptyIsNoop(t *testing.T) {
	t.Parallel()

	p, store := trainedPipeline(t)
	before, saves := store.snapshot()
	current := p.Current()

	retrainer := NewFeedbackRetrainer(p, &fakeFeedback{}, nil)
	model, err := retrainer.ApplyFeedback(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, current, model)

	after, savesAfter := store.snapshot()
	assert.Equal(t, saves, savesAfter)
	assert.Equal(t, before.Classifier, after.Classifier)
	assert.Equal(t, before.Revision, after.Revision)
}

func TestApplyFeedbackMovesTowardAnalystLabel(t *testing.T) {
	t.Parallel()

	p, store := trainedPipeline(t)
	retrainer := NewFeedbackRetrainer(p, &fakeFeedback{}, nil)

	texts := []string{
		"quarterly security awareness training for all staff",
		"urgent phishing alert for bank customers",
		"please review the attached lunch menu",
	}

	for _, text := range texts {
		clean := textproc.Clean(text)
		before := p.Current()
		pBefore, err := before.Score(clean)
		require.NoError(t, err)

		// The analyst disagrees with whatever the model said.
		label := !p.Predict(text).IsThreat
		model, err := retrainer.ApplyFeedback(context.Background(), []domain.FeedbackRecord{
			{ID: 1, CleanText: clean, AnalystLabel: label},
		})
		require.NoError(t, err)

		pAfter, err := model.Score(clean)
		require.NoError(t, err)
		if label {
			assert.GreaterOrEqual(t, pAfter, pBefore, text)
		} else {
			assert.LessOrEqual(t, pAfter, pBefore, text)
		}

		assert.Equal(t, before.Version, model.Version)
		assert.Equal(t, before.Revision+1, model.Revision)
		assert.Same(t, before.Extractor, model.Extractor)
		assert.Same(t, model, p.Current())

		pair, _ := store.snapshot()
		assert.Equal(t, model.Revision, pair.Revision)
	}
}

func TestApplyFeedbackWithoutModel(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&memStore{}, false)
	retrainer := NewFeedbackRetrainer(p, &fakeFeedback{}, nil)

	_, err := retrainer.ApplyFeedback(context.Background(), []domain.FeedbackRecord{{CleanText: "x", AnalystLabel: true}})
	assert.ErrorIs(t, err, apperr.ErrUnfittedClassifier)
}

func TestApplyFeedbackSaveFailureKeepsModel(t *testing.T) {
	t.Parallel()

	p, store := trainedPipeline(t)
	current := p.Current()

	store.mu.Lock()
	store.saveErr = errors.New("permission denied")
	store.mu.Unlock()

	retrainer := NewFeedbackRetrainer(p, &fakeFeedback{}, nil)
	_, err := retrainer.ApplyFeedback(context.Background(), []domain.FeedbackRecord{
		{CleanText: "ransomware", AnalystLabel: true},
	})
	assert.ErrorIs(t, err, apperr.ErrArtifactIO)
	assert.Same(t, current, p.Current())
}

func TestFeedbackRunClearsAppliedRecords(t *testing.T) {
	t.Parallel()

	p, _ := trainedPipeline(t)
	store := &fakeFeedback{pending: []domain.FeedbackRecord{
		{ID: 7, CleanText: "fake invoice asks for bank password", AnalystLabel: true},
		{ID: 9, CleanText: "team lunch menu", AnalystLabel: false},
	}}
	retrainer := NewFeedbackRetrainer(p, store, nil)

	n, err := retrainer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{7, 9}, store.cleared)
	assert.Equal(t, 1, p.Current().Revision)

	n, err = retrainer.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, p.Current().Revision)
}

// relabelAfterRead changes the first pending row's stored value right after it
// is read, as an analyst re-marking it mid-run would.
type relabelAfterRead struct {
	*fakeFeedback
}

func (r relabelAfterRead) PendingFeedback(ctx context.Context) ([]domain.FeedbackRecord, error) {
	records, err := r.fakeFeedback.PendingFeedback(ctx)
	read := append([]domain.FeedbackRecord(nil), records...)
	r.pending[0].Value = domain.FeedbackFalsePositive
	r.pending[0].AnalystLabel = false
	return read, err
}

func TestFeedbackRunKeepsLabelChangedDuringRun(t *testing.T) {
	t.Parallel()

	p, _ := trainedPipeline(t)
	store := &fakeFeedback{pending: []domain.FeedbackRecord{
		{ID: 7, CleanText: "fake invoice asks for bank password", AnalystLabel: true, Value: domain.FeedbackConfirmed},
		{ID: 9, CleanText: "team lunch menu", AnalystLabel: false, Value: domain.FeedbackFalsePositive},
	}}

	n, err := NewFeedbackRetrainer(p, relabelAfterRead{store}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{9}, store.cleared)
	require.Len(t, store.pending, 1)
	assert.Equal(t, int64(7), store.pending[0].ID)
	assert.Equal(t, domain.FeedbackFalsePositive, store.pending[0].Value)
}

func TestFeedbackRunDoesNotClearOnFailure(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&memStore{}, false)
	store := &fakeFeedback{pending: []domain.FeedbackRecord{{ID: 3, CleanText: "x", AnalystLabel: true}}}

	_, err := NewFeedbackRetrainer(p, store, nil).Run(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnfittedClassifier)
	assert.Empty(t, store.cleared)
}

func TestFeedbackRunWithoutStore(t *testing.T) {
	t.Parallel()

	p, _ := trainedPipeline(t)
	_, err := NewFeedbackRetrainer(p, nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}
