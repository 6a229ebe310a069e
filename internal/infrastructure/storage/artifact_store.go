package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

var (
	bucketArtifacts = []byte("artifacts")

	keyCurrent    = []byte("current")
	keyManifest   = []byte("manifest")
	keyVocabulary = []byte("vocabulary")
	keyClassifier = []byte("classifier")
)

type manifest struct {
	Version  string    `json:"version"`
	Revision int       `json:"revision"`
	SavedAt  time.Time `json:"saved_at"`
}

// ArtifactStore keeps model artifact pairs in a BoltDB file. Each version gets
// its own sub-bucket and "current" points at the last saved one.
//
// The file is opened per operation and closed right after, read-only for
// Load and Versions. Several processes (a running serve, a predict, a train)
// can therefore share one path; bbolt's file lock only serialises the
// individual transactions.
type ArtifactStore struct {
	path    string
	timeout time.Duration
}

var _ ports.ArtifactStore = (*ArtifactStore)(nil)

const lockTimeout = 5 * time.Second

// NewArtifactStore prepares a store at path. The file itself is created by the
// first Save.
func NewArtifactStore(path string) (*ArtifactStore, error) {
	if path == "" {
		return nil, apperr.New(apperr.ErrConfiguration, "artifact store", "path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.ErrArtifactIO, "create artifact dir", err)
		}
	}
	return &ArtifactStore{path: path, timeout: lockTimeout}, nil
}

// view runs fn in a read transaction under a shared file lock. A missing file
// reads as ErrArtifactNotFound.
func (s *ArtifactStore) view(fn func(*bbolt.Tx) error) error {
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: s.timeout, ReadOnly: true})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrArtifactNotFound
		}
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer db.Close()
	return db.View(fn)
}

// update runs fn in a write transaction under an exclusive file lock.
func (s *ArtifactStore) update(fn func(*bbolt.Tx) error) error {
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: s.timeout})
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer db.Close()
	return db.Update(fn)
}

// Load returns the pair "current" points at.
func (s *ArtifactStore) Load(ctx context.Context) (domain.ArtifactPair, error) {
	if err := ctx.Err(); err != nil {
		return domain.ArtifactPair{}, err
	}

	var pair domain.ArtifactPair
	err := s.view(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketArtifacts)
		if root == nil {
			return apperr.ErrArtifactNotFound
		}
		current := root.Get(keyCurrent)
		if current == nil {
			return apperr.ErrArtifactNotFound
		}
		version := root.Bucket(current)
		if version == nil {
			return fmt.Errorf("current version %q has no bucket: %w", current, apperr.ErrArtifactNotFound)
		}

		var m manifest
		if err := json.Unmarshal(version.Get(keyManifest), &m); err != nil {
			return fmt.Errorf("decode manifest: %w", err)
		}
		vocab := version.Get(keyVocabulary)
		clf := version.Get(keyClassifier)
		if vocab == nil || clf == nil {
			return fmt.Errorf("version %s is incomplete: %w", m.Version, apperr.ErrArtifactNotFound)
		}

		// bbolt values are only valid inside the transaction.
		pair = domain.ArtifactPair{
			Version:    m.Version,
			Revision:   m.Revision,
			Vocabulary: append([]byte(nil), vocab...),
			Classifier: append([]byte(nil), clf...),
			SavedAt:    m.SavedAt,
		}
		return nil
	})
	if err != nil {
		return domain.ArtifactPair{}, apperr.Wrap(apperr.ErrArtifactIO, "load artifacts", err)
	}
	return pair, nil
}

// Save writes both blobs and the manifest, then moves "current", in one transaction.
func (s *ArtifactStore) Save(ctx context.Context, pair domain.ArtifactPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if pair.Version == "" || len(pair.Vocabulary) == 0 || len(pair.Classifier) == 0 {
		return apperr.New(apperr.ErrArtifactIO, "save artifacts", "incomplete artifact pair")
	}

	raw, err := json.Marshal(manifest{Version: pair.Version, Revision: pair.Revision, SavedAt: pair.SavedAt})
	if err != nil {
		return apperr.Wrap(apperr.ErrArtifactIO, "encode manifest", err)
	}

	err = s.update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucketArtifacts)
		if err != nil {
			return err
		}
		version, err := root.CreateBucketIfNotExists([]byte(pair.Version))
		if err != nil {
			return err
		}
		for key, value := range map[string][]byte{
			string(keyManifest):   raw,
			string(keyVocabulary): pair.Vocabulary,
			string(keyClassifier): pair.Classifier,
		} {
			if err := version.Put([]byte(key), value); err != nil {
				return err
			}
		}
		return root.Put(keyCurrent, []byte(pair.Version))
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrArtifactIO, "save artifacts", err)
	}
	return nil
}

// Versions lists stored model versions in key order.
func (s *ArtifactStore) Versions() ([]string, error) {
	var versions []string
	err := s.view(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketArtifacts)
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(k []byte) error {
			versions = append(versions, string(k))
			return nil
		})
	})
	if errors.Is(err, apperr.ErrArtifactNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrArtifactIO, "list versions", err)
	}
	return versions, nil
}
