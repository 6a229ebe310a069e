package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("SMTP_SERVER", "")
	t.Setenv("SPLUNK_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg := config.LoadFrom("")
	cfg.Database.DSN = ""
	cfg.Artifacts.Path = filepath.Join(t.TempDir(), "model.db")
	cfg.Model.Members = 5
	cfg.Model.Epochs = 10
	cfg.Model.PartialEpochs = 5
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.ThreatThreshold = 2

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestApplicationWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	application, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, application.Close()) })

	ctx := context.Background()
	assert.Equal(t, domain.ClassUnknown, application.Predict("ransomware").ThreatClass)

	require.NoError(t, application.Init(ctx))
	verdict := application.Predict("Ransomware group exploits zero-day vulnerability")
	assert.NotEqual(t, domain.ClassUnknown, verdict.ThreatClass)

	_, err = application.ApplyFeedback(ctx)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.ErrorIs(t, application.MarkFeedback(ctx, "abc", true), apperr.ErrConfiguration)
	_, err = application.ListThreats(ctx, 10)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestTrainFromDataset(t *testing.T) {
	cfg := testConfig(t)

	var b strings.Builder
	b.WriteString("Cleaned Threat Description,Severity Score\n")
	for i := 0; i < 10; i++ {
		b.WriteString("ransomware encrypts servers and demands payment,5\n")
		b.WriteString("phishing email steals credentials,4\n")
		b.WriteString("team lunch scheduled for friday,1\n")
		b.WriteString("quarterly newsletter published,1\n")
	}
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(cfg.Dataset.Path, []byte(b.String()), 0o600))

	application, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, application.Close()) })

	report, err := application.Train(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 40, report.TrainSize+report.HeldOutSize)

	verdict := application.Predict("ransomware encrypts servers")
	assert.True(t, verdict.IsThreat)

	_, err = application.Train(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientData)
}

func TestApplicationsShareArtifactPath(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	serving, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, serving.Close()) })
	require.NoError(t, serving.Init(ctx))
	bootstrapped := serving.classifier.Current().Version

	// A second command against the same config while the first stays up.
	other, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, other.Close()) })

	_, err = other.ListThreats(ctx, 5)
	assert.ErrorIs(t, err, apperr.ErrConfiguration, "fails on the missing database, not the artifact file")
	assert.ErrorIs(t, other.MarkFeedback(ctx, "abc", false), apperr.ErrConfiguration)

	require.NoError(t, other.Init(ctx))
	assert.Equal(t, bootstrapped, other.classifier.Current().Version, "reads the model the first one stored")
	assert.NotEqual(t, domain.ClassUnknown, other.Predict("ransomware attack").ThreatClass)

	_, err = other.classifier.Train(ctx, []domain.TrainingExample{
		{Text: "ransomware encrypts servers and demands payment", Label: true},
		{Text: "phishing email steals credentials", Label: true},
		{Text: "team lunch scheduled for friday", Label: false},
		{Text: "quarterly newsletter published", Label: false},
	})
	require.NoError(t, err)

	changed, err := serving.classifier.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, other.classifier.Current().Version, serving.classifier.Current().Version)
}
