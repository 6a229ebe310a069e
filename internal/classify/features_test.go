package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ThreatScanner/internal/apperr"
)

func TestFitKeepsTopTermsByTFIDF(t *testing.T) {
	t.Parallel()

	ex := NewFeatureExtractor(ExtractorConfig{MaxFeatures: 2, MaxNGram: 1})
	vocab, err := ex.Fit([]string{"alpha alpha alpha beta", "alpha gamma"})
	require.NoError(t, err)

	// alpha scores 4 x idf 1.0; beta and gamma tie at 1 x 1.405 and beta wins the tie.
	assert.Equal(t, []string{"alpha", "beta"}, vocab.Terms())
	assert.Equal(t, 2, vocab.Size())
}

func TestFitBuildsNGramsWithoutStopWords(t *testing.T) {
	t.Parallel()

	ex := NewFeatureExtractor(DefaultExtractorConfig())
	vocab, err := ex.Fit([]string{"confirm the bank password", "the office lunch menu"})
	require.NoError(t, err)

	for _, term := range []string{"bank", "bank password", "confirm bank password", "lunch menu"} {
		_, ok := vocab.Index(term)
		assert.True(t, ok, "expected term %q", term)
	}
	_, ok := vocab.Index("the")
	assert.False(t, ok, "stop words must be dropped")
}

func TestFitRejectsEmptyCorpus(t *testing.T) {
	t.Parallel()

	ex := NewFeatureExtractor(DefaultExtractorConfig())

	_, err := ex.Fit(nil)
	assert.ErrorIs(t, err, apperr.ErrInsufficientData)

	_, err = ex.Fit([]string{"the a of", "x"})
	assert.ErrorIs(t, err, apperr.ErrInsufficientData)
}

func TestTransformBeforeFit(t *testing.T) {
	t.Parallel()

	_, err := NewFeatureExtractor(DefaultExtractorConfig()).Transform("anything")
	assert.ErrorIs(t, err, apperr.ErrUnfittedExtractor)
}

func TestTransformVector(t *testing.T) {
	t.Parallel()

	ex := NewFeatureExtractor(DefaultExtractorConfig())
	vocab, err := ex.Fit([]string{"ransomware hits bank", "lunch menu attached", "bank lunch"})
	require.NoError(t, err)

	vec, err := ex.Transform("ransomware ransomware bank")
	require.NoError(t, err)
	require.Len(t, vec, vocab.Size())

	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	ri, _ := vocab.Index("ransomware")
	bi, _ := vocab.Index("bank")
	assert.Greater(t, vec[ri], vec[bi], "repeated term with higher idf must weigh more")

	unknown, err := ex.Transform("completely unrelated words")
	require.NoError(t, err)
	assert.Len(t, unknown, vocab.Size())
	for _, w := range unknown {
		assert.Zero(t, w)
	}
}

func TestVocabularyJSONKeepsIndices(t *testing.T) {
	t.Parallel()

	ex := NewFeatureExtractor(DefaultExtractorConfig())
	vocab, err := ex.Fit([]string{"zero day exploit", "team offsite agenda"})
	require.NoError(t, err)

	raw, err := vocab.MarshalJSON()
	require.NoError(t, err)

	var decoded Vocabulary
	require.NoError(t, decoded.UnmarshalJSON(raw))

	restored := NewFeatureExtractorFromVocabulary(DefaultExtractorConfig(), &decoded)
	want, err := ex.Transform("zero day exploit agenda")
	require.NoError(t, err)
	got, err := restored.Transform("zero day exploit agenda")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
