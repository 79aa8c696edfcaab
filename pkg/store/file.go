package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roverlab/traverse/pkg/errors"
)

// FileStore persists each path record as a JSON document in a directory.
// Records survive process restarts; the directory is the unit of backup.
type FileStore struct {
	dir  string
	opts Options

	mu      sync.Mutex
	nextSeq int64
	hashes  map[string]string // coord hash -> record ID
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (creating if needed) a directory-backed store. The
// existing records are scanned once to restore the sequence counter and the
// duplicate index.
func NewFileStore(dir string, opts Options) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "creating store directory %s", dir)
	}
	s := &FileStore{dir: dir, opts: opts, hashes: make(map[string]string)}

	recs, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.Seq > s.nextSeq {
			s.nextSeq = rec.Seq
		}
		s.hashes[rec.CoordHash] = rec.ID
	}
	return s, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Insert implements [Store].
func (s *FileStore) Insert(_ context.Context, rec *PathRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	hash := coordHash(rec.Coords)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.DisallowDuplicates {
		if id, ok := s.hashes[hash]; ok {
			return "", errors.New(errors.ErrCodeDuplicatePath,
				"coordinate sequence already stored as %s", id)
		}
	}

	s.nextSeq++
	stored := *rec
	stored.ID = uuid.NewString()
	stored.Seq = s.nextSeq
	stored.CoordHash = hash
	stored.CreatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encoding path record")
	}
	if err := os.WriteFile(s.path(stored.ID), data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "writing path record %s", stored.ID)
	}
	s.hashes[hash] = stored.ID

	rec.ID, rec.Seq, rec.CoordHash, rec.CreatedAt = stored.ID, stored.Seq, stored.CoordHash, stored.CreatedAt
	return stored.ID, nil
}

// Get implements [Store].
func (s *FileStore) Get(_ context.Context, id string) (*PathRecord, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "no path record with id %s", id)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "reading path record %s", id)
	}
	var rec PathRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decoding path record %s", id)
	}
	return &rec, nil
}

// List implements [Store].
func (s *FileStore) List(_ context.Context, f Filter) ([]*PathRecord, error) {
	recs, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if matches(rec, f) {
			out = append(out, rec)
		}
	}
	sortRecords(out, f)
	return out, nil
}

// Delete implements [Store].
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "removing path record %s", id)
	}
	delete(s.hashes, rec.CoordHash)
	return nil
}

// Close implements [Store]. It is a no-op for the file backend.
func (s *FileStore) Close(context.Context) error { return nil }

// readAll loads every record in the directory. Unknown files are skipped.
func (s *FileStore) readAll() ([]*PathRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "listing store directory %s", s.dir)
	}
	var recs []*PathRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "reading %s", entry.Name())
		}
		var rec PathRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "decoding %s", entry.Name())
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}
