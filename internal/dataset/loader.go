package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
	"ThreatScanner/pkg/logger"
)

// Options names the CSV columns and the severity cut-off. A row whose severity
// is strictly above Threshold is labeled a threat.
type Options struct {
	TextColumn     string
	SeverityColumn string
	Threshold      float64
}

// DefaultOptions match the NLP-based cyber security dataset layout.
func DefaultOptions() Options {
	return Options{
		TextColumn:     "Cleaned Threat Description",
		SeverityColumn: "Severity Score",
		Threshold:      2,
	}
}

// Summary counts what a load produced.
type Summary struct {
	Rows    int
	Threats int
	Benign  int
	Skipped int
}

// LoadFile opens path and reads labeled examples from it.
func LoadFile(path string, opts Options, log *slog.Logger) ([]domain.TrainingExample, Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Summary{}, apperr.Wrap(apperr.ErrInsufficientData, "open dataset", err)
	}
	defer f.Close()
	return Load(f, opts, log)
}

// Load reads a CSV with a header row. Rows with an unparseable severity are skipped.
func Load(r io.Reader, opts Options, log *slog.Logger) ([]domain.TrainingExample, Summary, error) {
	lg := logger.Component(log, "dataset")
	def := DefaultOptions()
	if opts.TextColumn == "" {
		opts.TextColumn = def.TextColumn
	}
	if opts.SeverityColumn == "" {
		opts.SeverityColumn = def.SeverityColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Summary{}, apperr.New(apperr.ErrInsufficientData, "load dataset", "empty file")
		}
		return nil, Summary{}, fmt.Errorf("read header: %w", err)
	}

	textIdx, sevIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case opts.TextColumn:
			textIdx = i
		case opts.SeverityColumn:
			sevIdx = i
		}
	}
	if textIdx < 0 || sevIdx < 0 {
		return nil, Summary{}, apperr.New(apperr.ErrConfiguration, "load dataset",
			"dataset must contain %q and %q columns, found %v", opts.TextColumn, opts.SeverityColumn, header)
	}

	var (
		examples []domain.TrainingExample
		summary  Summary
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, summary, fmt.Errorf("read row %d: %w", summary.Rows+1, err)
		}
		summary.Rows++

		if textIdx >= len(record) || sevIdx >= len(record) {
			summary.Skipped++
			continue
		}
		severity, err := strconv.ParseFloat(strings.TrimSpace(record[sevIdx]), 64)
		if err != nil {
			summary.Skipped++
			continue
		}

		label := severity > opts.Threshold
		if label {
			summary.Threats++
		} else {
			summary.Benign++
		}
		examples = append(examples, domain.TrainingExample{Text: record[textIdx], Label: label})
	}

	lg.Info("dataset loaded", "rows", summary.Rows, "threats", summary.Threats, "benign", summary.Benign, "skipped", summary.Skipped)
	return examples, summary, nil
}
