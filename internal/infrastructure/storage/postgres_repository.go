package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// ErrThreatNotFound is returned when feedback targets an unknown document.
var ErrThreatNotFound = errors.New("threat not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists analyzed documents and analyst feedback in the
// threats table.
type PostgresRepository struct {
	db *sql.DB
}

var (
	_ ports.ThreatRepository = (*PostgresRepository)(nil)
	_ ports.FeedbackStore    = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// AlreadyProcessed returns a map with IDs that already exist in storage.
func (r *PostgresRepository) AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := alreadyProcessedQuery(ids).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build processed query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// SaveAnalyzed upserts the analyzed document. Existing analyst feedback is kept.
func (r *PostgresRepository) SaveAnalyzed(ctx context.Context, doc domain.AnalyzedDocument) error {
	if r.db == nil {
		return nil
	}

	builder, err := saveAnalyzedQuery(doc)
	if err != nil {
		return err
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert threat: %w", err)
	}
	return nil
}

// RecentThreats lists the newest stored verdicts.
func (r *PostgresRepository) RecentThreats(ctx context.Context, limit int) ([]domain.StoredThreat, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := recentThreatsQuery(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var threats []domain.StoredThreat
	for rows.Next() {
		var (
			t     domain.StoredThreat
			class string
		)
		if err := rows.Scan(&t.ID, &t.ExternalID, &t.Source, &t.URL, &t.CleanText,
			&t.Verdict.IsThreat, &class, &t.Verdict.Confidence, &t.Feedback, &t.CollectedAt); err != nil {
			return nil, fmt.Errorf("scan threat: %w", err)
		}
		t.Verdict.ThreatClass = domain.ThreatClass(class)
		threats = append(threats, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return threats, nil
}

// PendingFeedback returns every row an analyst has labeled and that was not yet applied.
func (r *PostgresRepository) PendingFeedback(ctx context.Context) ([]domain.FeedbackRecord, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := pendingFeedbackQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feedback query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var records []domain.FeedbackRecord
	for rows.Next() {
		var (
			rec   domain.FeedbackRecord
			label string
		)
		if err := rows.Scan(&rec.ID, &rec.CleanText, &label); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		rec.AnalystLabel = domain.FeedbackLabel(label)
		rec.Value = label
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// ClearFeedback nulls the feedback column of applied rows whose value is
// still the one that was applied.
func (r *PostgresRepository) ClearFeedback(ctx context.Context, applied []domain.FeedbackRecord) error {
	if r.db == nil || len(applied) == 0 {
		return nil
	}

	query, args, err := clearFeedbackQuery(applied).ToSql()
	if err != nil {
		return fmt.Errorf("build clear feedback: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear feedback: %w", err)
	}
	return nil
}

// RecordFeedback stores an analyst label for a document by its external ID.
func (r *PostgresRepository) RecordFeedback(ctx context.Context, externalID string, confirmed bool) error {
	if r.db == nil {
		return nil
	}

	query, args, err := recordFeedbackQuery(externalID, confirmed).ToSql()
	if err != nil {
		return fmt.Errorf("build record feedback: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record feedback for %s: %w", externalID, ErrThreatNotFound)
	}
	return nil
}

func alreadyProcessedQuery(ids []string) sq.SelectBuilder {
	return psql.Select("external_id").
		From("threats").
		Where("external_id = ANY(?)", pq.Array(ids))
}

func saveAnalyzedQuery(doc domain.AnalyzedDocument) (sq.InsertBuilder, error) {
	entities, err := json.Marshal(doc.Entities)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("marshal entities: %w", err)
	}

	return psql.Insert("threats").
		Columns("external_id", "raw_text", "clean_text", "source", "entities",
			"is_threat", "threat_class", "confidence", "url", "published", "timestamp").
		Values(doc.Document.ID, doc.Document.Text, doc.CleanText, doc.Document.Source, string(entities),
			doc.Verdict.IsThreat, string(doc.Verdict.ThreatClass), doc.Verdict.Confidence,
			doc.Document.URL, doc.Document.Timestamp, doc.ProcessedAt).
		Suffix(`ON CONFLICT (external_id) DO UPDATE
              SET clean_text = EXCLUDED.clean_text,
                  entities = EXCLUDED.entities,
                  is_threat = EXCLUDED.is_threat,
                  threat_class = EXCLUDED.threat_class,
                  confidence = EXCLUDED.confidence`), nil
}

func recentThreatsQuery(limit int) sq.SelectBuilder {
	if limit <= 0 {
		limit = 100
	}
	return psql.Select("id", "external_id", "source", "url", "clean_text",
		"is_threat", "threat_class", "confidence", "COALESCE(feedback, '')", "timestamp").
		From("threats").
		OrderBy("timestamp DESC").
		Limit(uint64(limit))
}

func pendingFeedbackQuery() sq.SelectBuilder {
	return psql.Select("id", "clean_text", "feedback").
		From("threats").
		Where(sq.NotEq{"feedback": nil}).
		OrderBy("id")
}

func clearFeedbackQuery(applied []domain.FeedbackRecord) sq.UpdateBuilder {
	match := make(sq.Or, 0, len(applied))
	for _, rec := range applied {
		match = append(match, sq.And{sq.Eq{"id": rec.ID}, sq.Eq{"feedback": rec.Value}})
	}
	return psql.Update("threats").
		Set("feedback", nil).
		Where(match)
}

func recordFeedbackQuery(externalID string, confirmed bool) sq.UpdateBuilder {
	label := domain.FeedbackFalsePositive
	if confirmed {
		label = domain.FeedbackConfirmed
	}
	return psql.Update("threats").
		Set("feedback", label).
		Where(sq.Eq{"external_id": externalID})
}
