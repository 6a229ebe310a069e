package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
)

func openTestStore(t *testing.T) (*ArtifactStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "model.db")
	store, err := NewArtifactStore(path)
	require.NoError(t, err)
	return store, path
}

func TestArtifactStoreEmpty(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t)
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrArtifactNotFound)
	assert.ErrorIs(t, err, apperr.ErrArtifactIO)
}

func TestArtifactStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, path := openTestStore(t)
	ctx := context.Background()
	saved := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)

	first := domain.ArtifactPair{Version: "v1", Vocabulary: []byte(`{"terms":["a"]}`), Classifier: []byte(`{"dim":1}`), SavedAt: saved}
	require.NoError(t, store.Save(ctx, first))

	second := first
	second.Revision = 1
	second.Classifier = []byte(`{"dim":1,"rev":1}`)
	require.NoError(t, store.Save(ctx, second))

	third := domain.ArtifactPair{Version: "v2", Vocabulary: []byte(`{"terms":["b"]}`), Classifier: []byte(`{"dim":1}`), SavedAt: saved}
	require.NoError(t, store.Save(ctx, third))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, third, got)

	versions, err := store.Versions()
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, versions)

	// Another store on the same path sees the same current pair.
	reopened, err := NewArtifactStore(path)
	require.NoError(t, err)

	got, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Version)
}

func TestArtifactStoreKeepsRevision(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t)
	ctx := context.Background()

	pair := domain.ArtifactPair{Version: "v1", Revision: 3, Vocabulary: []byte("x"), Classifier: []byte("y")}
	require.NoError(t, store.Save(ctx, pair))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Revision)
	assert.Equal(t, []byte("y"), got.Classifier)
}

func TestArtifactStoreRejectsIncompletePair(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t)
	err := store.Save(context.Background(), domain.ArtifactPair{Version: "v1", Vocabulary: []byte("x")})
	assert.ErrorIs(t, err, apperr.ErrArtifactIO)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrArtifactNotFound)
}

func TestArtifactStoreSharesPath(t *testing.T) {
	t.Parallel()

	writer, path := openTestStore(t)
	reader, err := NewArtifactStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	versions, err := reader.Versions()
	require.NoError(t, err)
	assert.Empty(t, versions)

	pair := domain.ArtifactPair{Version: "v1", Vocabulary: []byte("x"), Classifier: []byte("y")}
	require.NoError(t, writer.Save(ctx, pair))

	got, err := reader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Version)

	pair.Revision = 1
	require.NoError(t, reader.Save(ctx, pair))
	got, err = writer.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Revision)
}

func TestArtifactStoreWaitsForForeignLock(t *testing.T) {
	t.Parallel()

	store, path := openTestStore(t)
	store.timeout = 50 * time.Millisecond
	require.NoError(t, store.Save(context.Background(),
		domain.ArtifactPair{Version: "v1", Vocabulary: []byte("x"), Classifier: []byte("y")}))

	held, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrArtifactIO)
	assert.NotErrorIs(t, err, apperr.ErrArtifactNotFound)

	require.NoError(t, held.Close())
	_, err = store.Load(context.Background())
	assert.NoError(t, err)
}
