package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"ThreatScanner/internal/apperr"
)

// ExtractorConfig controls vocabulary construction.
type ExtractorConfig struct {
	MaxFeatures int
	MaxNGram    int
	StopWords   map[string]struct{}
}

// DefaultExtractorConfig keeps 1000 terms of up to three words, English stop words removed.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxFeatures: 1000,
		MaxNGram:    3,
		StopWords:   EnglishStopWords(),
	}
}

func (c ExtractorConfig) normalized() ExtractorConfig {
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = 1000
	}
	if c.MaxNGram <= 0 {
		c.MaxNGram = 1
	}
	if c.StopWords == nil {
		c.StopWords = map[string]struct{}{}
	}
	return c
}

// Vocabulary maps terms to feature indices and carries the idf fixed at fit time.
// It is never modified once built.
type Vocabulary struct {
	terms    []string
	idf      []float64
	maxNGram int
	index    map[string]int
}

func newVocabulary(terms []string, idf []float64, maxNGram int) *Vocabulary {
	index := make(map[string]int, len(terms))
	for i, term := range terms {
		index[term] = i
	}
	return &Vocabulary{terms: terms, idf: idf, maxNGram: maxNGram, index: index}
}

// Size is the feature vector length.
func (v *Vocabulary) Size() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Index returns the feature index of a term.
func (v *Vocabulary) Index(term string) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.index[term]
	return i, ok
}

// Terms returns a copy of the ordered term list.
func (v *Vocabulary) Terms() []string {
	return append([]string(nil), v.terms...)
}

type vocabularyJSON struct {
	Terms    []string  `json:"terms"`
	IDF      []float64 `json:"idf"`
	MaxNGram int       `json:"max_ngram"`
}

// MarshalJSON encodes the vocabulary artifact.
func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(vocabularyJSON{Terms: v.terms, IDF: v.idf, MaxNGram: v.maxNGram})
}

// UnmarshalJSON decodes a vocabulary artifact and rebuilds the term index.
func (v *Vocabulary) UnmarshalJSON(data []byte) error {
	var raw vocabularyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Terms) != len(raw.IDF) {
		return fmt.Errorf("vocabulary has %d terms but %d idf weights", len(raw.Terms), len(raw.IDF))
	}
	if raw.MaxNGram <= 0 {
		raw.MaxNGram = 1
	}
	*v = *newVocabulary(raw.Terms, raw.IDF, raw.MaxNGram)
	return nil
}

// FeatureExtractor turns clean text into tf-idf weighted vectors.
type FeatureExtractor struct {
	cfg   ExtractorConfig
	vocab *Vocabulary
}

// NewFeatureExtractor returns an unfitted extractor.
func NewFeatureExtractor(cfg ExtractorConfig) *FeatureExtractor {
	return &FeatureExtractor{cfg: cfg.normalized()}
}

// NewFeatureExtractorFromVocabulary wraps a persisted vocabulary.
func NewFeatureExtractorFromVocabulary(cfg ExtractorConfig, vocab *Vocabulary) *FeatureExtractor {
	cfg = cfg.normalized()
	if vocab != nil {
		cfg.MaxNGram = vocab.maxNGram
	}
	return &FeatureExtractor{cfg: cfg, vocab: vocab}
}

// Vocabulary returns the fitted vocabulary, or nil.
func (e *FeatureExtractor) Vocabulary() *Vocabulary {
	return e.vocab
}

// Fit builds the vocabulary from a corpus of clean texts.
func (e *FeatureExtractor) Fit(corpus []string) (*Vocabulary, error) {
	if len(corpus) == 0 {
		return nil, apperr.New(apperr.ErrInsufficientData, "fit extractor", "empty corpus")
	}

	docFreq := map[string]int{}
	termFreq := make([]map[string]int, len(corpus))
	for i, text := range corpus {
		counts := e.countTerms(text)
		termFreq[i] = counts
		for term := range counts {
			docFreq[term]++
		}
	}
	if len(docFreq) == 0 {
		return nil, apperr.New(apperr.ErrInsufficientData, "fit extractor", "corpus produced no terms")
	}

	n := float64(len(corpus))
	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		idf[term] = smoothIDF(n, float64(df))
	}

	scores := make(map[string]float64, len(docFreq))
	for _, counts := range termFreq {
		for term, c := range counts {
			scores[term] += float64(c) * idf[term]
		}
	}

	ranked := make([]string, 0, len(scores))
	for term := range scores {
		ranked = append(ranked, term)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > e.cfg.MaxFeatures {
		ranked = ranked[:e.cfg.MaxFeatures]
	}
	sort.Strings(ranked)

	weights := make([]float64, len(ranked))
	for i, term := range ranked {
		weights[i] = idf[term]
	}

	e.vocab = newVocabulary(ranked, weights, e.cfg.MaxNGram)
	return e.vocab, nil
}

// Transform produces a vector of length Vocabulary.Size(). Unknown terms are ignored.
func (e *FeatureExtractor) Transform(text string) ([]float64, error) {
	if e == nil || e.vocab == nil {
		return nil, apperr.Wrap(apperr.ErrUnfittedExtractor, "transform", nil)
	}

	vec := make([]float64, e.vocab.Size())
	for term, c := range e.countTerms(text) {
		if i, ok := e.vocab.index[term]; ok {
			vec[i] = float64(c) * e.vocab.idf[i]
		}
	}

	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *FeatureExtractor) countTerms(text string) map[string]int {
	tokens := tokenize(text, e.cfg.StopWords)
	counts := map[string]int{}
	for n := 1; n <= e.cfg.MaxNGram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[strings.Join(tokens[i:i+n], " ")]++
		}
	}
	return counts
}

// tokenize splits on anything that is not a letter or digit, case-folds and drops
// one-character tokens and stop words.
func tokenize(text string, stop map[string]struct{}) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := stop[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func smoothIDF(n, df float64) float64 {
	return math.Log((1+n)/(1+df)) + 1
}
