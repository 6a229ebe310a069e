package ports

import (
	"context"
	"time"

	"ThreatScanner/internal/domain"
)

// DocumentSource pulls fresh documents from upstream collectors.
type DocumentSource interface {
	Collect(ctx context.Context) ([]domain.Document, error)
}

// ThreatRepository persists analyzed documents for deduplication and review.
type ThreatRepository interface {
	AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error)
	SaveAnalyzed(ctx context.Context, doc domain.AnalyzedDocument) error
	RecentThreats(ctx context.Context, limit int) ([]domain.StoredThreat, error)
}

// FeedbackStore exposes analyst labels on stored verdicts. Cleared rows are
// never returned again; a row re-labelled since it was read is not cleared.
type FeedbackStore interface {
	PendingFeedback(ctx context.Context) ([]domain.FeedbackRecord, error)
	ClearFeedback(ctx context.Context, applied []domain.FeedbackRecord) error
	RecordFeedback(ctx context.Context, externalID string, confirmed bool) error
}

// ArtifactStore loads and saves the vocabulary/classifier pair as one unit.
type ArtifactStore interface {
	Load(ctx context.Context) (domain.ArtifactPair, error)
	Save(ctx context.Context, pair domain.ArtifactPair) error
}

// AlertSender delivers a threat alert to an operator channel (email, SIEM, chat).
type AlertSender interface {
	Send(ctx context.Context, alert domain.Alert) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
