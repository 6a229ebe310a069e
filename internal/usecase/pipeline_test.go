package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
)

type fakeSource struct {
	docs []domain.Document
	err  error
}

func (f *fakeSource) Collect(ctx context.Context) ([]domain.Document, error) {
	return f.docs, f.err
}

type fakeRepo struct {
	mu       sync.Mutex
	existing map[string]bool
	saved    []domain.AnalyzedDocument
	saveErr  error
}

func (f *fakeRepo) AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if f.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeRepo) SaveAnalyzed(ctx context.Context, doc domain.AnalyzedDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, doc)
	return nil
}

func (f *fakeRepo) RecentThreats(ctx context.Context, limit int) ([]domain.StoredThreat, error) {
	return nil, nil
}

// keywordClassifier flags anything mentioning ransomware as critical and
// phishing as suspicious.
type keywordClassifier struct {
	unavailable bool
}

func (k keywordClassifier) Classify(raw string) (string, domain.Verdict) {
	clean := strings.ToLower(raw)
	switch {
	case k.unavailable:
		return clean, domain.UnavailableVerdict()
	case strings.Contains(clean, "ransomware"):
		return clean, domain.Verdict{IsThreat: true, Confidence: 0.9, ThreatClass: domain.ClassCritical}
	case strings.Contains(clean, "phishing"):
		return clean, domain.Verdict{IsThreat: true, Confidence: 0.6, ThreatClass: domain.ClassSuspicious}
	default:
		return clean, domain.Verdict{IsThreat: false, Confidence: 0.8, ThreatClass: domain.ClassBenign}
	}
}

type fakeAlerts struct {
	sent []domain.Alert
	err  error
}

func (f *fakeAlerts) Send(ctx context.Context, a domain.Alert) error {
	f.sent = append(f.sent, a)
	return f.err
}

func newTestPipeline(src *fakeSource, repo *fakeRepo, clf Classifier, alerts *fakeAlerts) *Pipeline {
	p := NewPipeline(PipelineDeps{
		Source:         src,
		Repository:     repo,
		Classifier:     clf,
		Alerts:         alerts,
		AlertThreshold: 0.7,
		Meter:          noop.NewMeterProvider().Meter("test"),
	})
	p.now = func() time.Time { return time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestRunOnceClassifiesStoresAndAlerts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{docs: []domain.Document{
		{Text: "Ransomware hits CVE-2024-3094 hosts at 10.1.2.3", Source: "rss", URL: "https://a"},
		{Text: "Phishing wave against banks", Source: "rss", URL: "https://b"},
		{Text: "Office lunch menu", Source: "forum", URL: "https://c"},
	}}
	repo := &fakeRepo{}
	alerts := &fakeAlerts{}

	report, err := newTestPipeline(src, repo, keywordClassifier{}, alerts).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunReport{Collected: 3, Analyzed: 3, Threats: 2, Alerted: 1}, report)
	require.Len(t, repo.saved, 3)

	first := repo.saved[0]
	assert.NotEmpty(t, first.Document.ID)
	assert.Equal(t, []string{"CVE-2024-3094"}, first.Entities.CVEs)
	assert.Equal(t, []string{"10.1.2.3"}, first.Entities.IPs)
	assert.Equal(t, domain.ClassCritical, first.Verdict.ThreatClass)

	// Only the critical one clears the 0.7 confidence bar.
	require.Len(t, alerts.sent, 1)
	assert.Equal(t, "https://a", alerts.sent[0].URL)
	assert.Equal(t, domain.ClassCritical, alerts.sent[0].ThreatClass)
}

func TestRunOnceSkipsDuplicates(t *testing.T) {
	t.Parallel()

	dup := domain.Document{Text: "ransomware", Source: "rss", URL: "https://a"}.WithID()
	src := &fakeSource{docs: []domain.Document{
		dup,
		dup,
		{ID: "stored", Text: "phishing", Source: "rss"},
	}}
	repo := &fakeRepo{existing: map[string]bool{"stored": true}}

	report, err := newTestPipeline(src, repo, keywordClassifier{}, &fakeAlerts{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Collected)
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, 1, report.Analyzed)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, dup.ID, repo.saved[0].Document.ID)
}

func TestRunOnceWithoutModelStoresNothing(t *testing.T) {
	t.Parallel()

	src := &fakeSource{docs: []domain.Document{{Text: "ransomware"}, {Text: "lunch"}}}
	repo := &fakeRepo{}
	alerts := &fakeAlerts{}

	report, err := newTestPipeline(src, repo, keywordClassifier{unavailable: true}, alerts).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Unscored)
	assert.Empty(t, repo.saved)
	assert.Empty(t, alerts.sent)
}

func TestRunOncePartialCollection(t *testing.T) {
	t.Parallel()

	failure := apperr.Wrap(apperr.ErrTransientNetwork, "source forum", errors.New("timeout"))
	src := &fakeSource{docs: []domain.Document{{Text: "phishing"}}, err: failure}
	repo := &fakeRepo{}

	report, err := newTestPipeline(src, repo, keywordClassifier{}, &fakeAlerts{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Analyzed)

	src.docs = nil
	_, err = newTestPipeline(src, repo, keywordClassifier{}, &fakeAlerts{}).RunOnce(context.Background())
	assert.ErrorIs(t, err, apperr.ErrTransientNetwork)
}

func TestRunOnceAlertFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	src := &fakeSource{docs: []domain.Document{{Text: "ransomware one", URL: "1"}, {Text: "ransomware two", URL: "2"}}}
	repo := &fakeRepo{}
	alerts := &fakeAlerts{err: errors.New("smtp down")}

	report, err := newTestPipeline(src, repo, keywordClassifier{}, alerts).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Analyzed)
	assert.Zero(t, report.Alerted)
	assert.Len(t, alerts.sent, 2)
}

func TestRunOncePersistFailureStops(t *testing.T) {
	t.Parallel()

	src := &fakeSource{docs: []domain.Document{{Text: "ransomware"}}}
	repo := &fakeRepo{saveErr: errors.New("db down")}
	alerts := &fakeAlerts{}

	_, err := newTestPipeline(src, repo, keywordClassifier{}, alerts).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Empty(t, alerts.sent, "nothing is alerted that was not stored")
}

type countingFeedback struct {
	calls int
}

func (c *countingFeedback) Run(ctx context.Context) (int, error) {
	c.calls++
	return 1, nil
}

// orderedRefresher records that it ran before any feedback was applied.
type orderedRefresher struct {
	feedback *countingFeedback
	calls    int
	before   bool
	err      error
}

func (r *orderedRefresher) Refresh(ctx context.Context) (bool, error) {
	r.calls++
	r.before = r.feedback.calls == 0
	return r.err == nil, r.err
}

func TestSchedulerTick(t *testing.T) {
	t.Parallel()

	src := &fakeSource{docs: []domain.Document{{Text: "ransomware"}}}
	repo := &fakeRepo{}
	feedback := &countingFeedback{}
	refresher := &orderedRefresher{feedback: feedback}

	s := NewScheduler(nil, newTestPipeline(src, repo, keywordClassifier{}, &fakeAlerts{}), refresher, feedback, nil)
	s.Tick(context.Background(), time.Now())

	assert.Equal(t, 1, refresher.calls)
	assert.True(t, refresher.before, "stored model is picked up before feedback is folded in")
	assert.Equal(t, 1, feedback.calls)
	assert.Len(t, repo.saved, 1)
	assert.NoError(t, s.Start(context.Background()), "no driver is a no-op")
	assert.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerTickSurvivesRefreshFailure(t *testing.T) {
	t.Parallel()

	src := &fakeSource{docs: []domain.Document{{Text: "ransomware"}}}
	repo := &fakeRepo{}
	feedback := &countingFeedback{}
	refresher := &orderedRefresher{feedback: feedback, err: errors.New("locked")}

	NewScheduler(nil, newTestPipeline(src, repo, keywordClassifier{}, &fakeAlerts{}), refresher, feedback, nil).
		Tick(context.Background(), time.Now())

	assert.Equal(t, 1, feedback.calls)
	assert.Len(t, repo.saved, 1)
}
