package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roverlab/traverse/pkg/errors"
)

// MemoryStore keeps path records in process memory. Useful for tests and
// one-shot planning sessions where persistence is not needed.
type MemoryStore struct {
	opts Options

	mu      sync.RWMutex
	records []*PathRecord
	byID    map[string]*PathRecord
	nextSeq int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{opts: opts, byID: make(map[string]*PathRecord)}
}

// Insert implements [Store].
func (s *MemoryStore) Insert(_ context.Context, rec *PathRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	hash := coordHash(rec.Coords)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.DisallowDuplicates {
		for _, existing := range s.records {
			if existing.CoordHash == hash {
				return "", errors.New(errors.ErrCodeDuplicatePath,
					"coordinate sequence already stored as %s", existing.ID)
			}
		}
	}

	s.nextSeq++
	stored := *rec
	stored.ID = uuid.NewString()
	stored.Seq = s.nextSeq
	stored.CoordHash = hash
	stored.CreatedAt = time.Now().UTC()

	s.records = append(s.records, &stored)
	s.byID[stored.ID] = &stored

	rec.ID, rec.Seq, rec.CoordHash, rec.CreatedAt = stored.ID, stored.Seq, stored.CoordHash, stored.CreatedAt
	return stored.ID, nil
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, id string) (*PathRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "no path record with id %s", id)
	}
	cp := *rec
	return &cp, nil
}

// List implements [Store].
func (s *MemoryStore) List(_ context.Context, f Filter) ([]*PathRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*PathRecord, 0, len(s.records))
	for _, rec := range s.records {
		if matches(rec, f) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sortRecords(out, f)
	return out, nil
}

// Delete implements [Store].
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return errors.New(errors.ErrCodeNotFound, "no path record with id %s", id)
	}
	delete(s.byID, id)
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	return nil
}

// Close implements [Store]. It is a no-op for the in-memory backend.
func (s *MemoryStore) Close(context.Context) error { return nil }
