// Package store persists planned paths independently of the graphs that
// produced them.
//
// A PathRecord round-trips a planner result: the coordinate sequence, the
// total cost vector, and enough provenance to recompute both. Records are
// immutable once inserted; correcting one means delete and reinsert, so the
// history of what was planned stays auditable.
//
// Three backends implement [Store]: an in-memory store for tests and
// short-lived sessions, a JSON directory store for single-user work, and a
// MongoDB store for shared deployments.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"time"

	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/terrain"
)

// PathRecord is the persisted form of one planned path. Its lifetime is
// independent of the graph that produced it.
type PathRecord struct {
	// ID is the stable identifier assigned on insert.
	ID string `json:"id" bson:"_id"`

	// Seq is a monotonically increasing insertion counter; List returns
	// records in Seq order unless a sort component is requested.
	Seq int64 `json:"seq" bson:"seq"`

	Coords []terrain.Coord `json:"coords" bson:"coords"`
	Cost   []float64       `json:"cost" bson:"cost"`

	// Objectives names the cost vector components in order.
	Objectives []string `json:"objectives,omitempty" bson:"objectives,omitempty"`

	// ConfigRef identifies the plan configuration the path was computed
	// with, typically a content hash.
	ConfigRef string `json:"config_ref,omitempty" bson:"config_ref,omitempty"`

	// CoordHash fingerprints the coordinate sequence for duplicate
	// detection. Assigned on insert.
	CoordHash string `json:"coord_hash" bson:"coord_hash"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Bound restricts one cost vector component to an optional closed range.
type Bound struct {
	// Component indexes into the cost vector.
	Component int

	// Min and Max bound the component inclusively; nil means unbounded.
	Min *float64
	Max *float64
}

// Filter selects and orders records for List. The zero value matches
// everything in insertion order.
type Filter struct {
	Bounds []Bound

	// SortComponent orders results ascending by one cost component, with
	// insertion order breaking ties. Nil keeps insertion order.
	SortComponent *int
}

// Options configures backend-independent store behavior.
type Options struct {
	// DisallowDuplicates makes Insert fail with a DUPLICATE_PATH error
	// when a record with an identical coordinate sequence already exists.
	// By default duplicates are permitted and each gets a distinct ID.
	DisallowDuplicates bool
}

// Store persists and retrieves path records. Implementations are safe for
// concurrent use.
type Store interface {
	// Insert assigns the record's ID, Seq, CoordHash, and CreatedAt and
	// persists it, returning the ID.
	Insert(ctx context.Context, rec *PathRecord) (string, error)

	// Get returns the record with the given ID, or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*PathRecord, error)

	// List returns the records matching the filter.
	List(ctx context.Context, f Filter) ([]*PathRecord, error)

	// Delete removes the record with the given ID, or returns a
	// NOT_FOUND error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// validateRecord rejects records a backend could not round-trip.
func validateRecord(rec *PathRecord) error {
	if len(rec.Coords) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "path record has no coordinates")
	}
	if len(rec.Cost) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "path record has no cost vector")
	}
	if len(rec.Objectives) > 0 && len(rec.Objectives) != len(rec.Cost) {
		return errors.New(errors.ErrCodeInvalidConfig,
			"%d objective names for a %d-component cost vector", len(rec.Objectives), len(rec.Cost))
	}
	return nil
}

// coordHash fingerprints a coordinate sequence.
func coordHash(coords []terrain.Coord) string {
	h := sha256.New()
	var buf [8]byte
	for _, c := range coords {
		binary.BigEndian.PutUint32(buf[:4], uint32(c.Row))
		binary.BigEndian.PutUint32(buf[4:], uint32(c.Col))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// matches reports whether a record satisfies every bound of the filter.
// Bounds on components the record does not have never match.
func matches(rec *PathRecord, f Filter) bool {
	for _, b := range f.Bounds {
		if b.Component < 0 || b.Component >= len(rec.Cost) {
			return false
		}
		v := rec.Cost[b.Component]
		if b.Min != nil && v < *b.Min {
			return false
		}
		if b.Max != nil && v > *b.Max {
			return false
		}
	}
	return true
}

// sortRecords orders records per the filter: by the requested cost
// component with insertion order breaking ties, or by insertion order.
func sortRecords(recs []*PathRecord, f Filter) {
	sort.SliceStable(recs, func(i, j int) bool {
		if f.SortComponent != nil {
			k := *f.SortComponent
			if k >= 0 && k < len(recs[i].Cost) && k < len(recs[j].Cost) &&
				recs[i].Cost[k] != recs[j].Cost[k] {
				return recs[i].Cost[k] < recs[j].Cost[k]
			}
		}
		return recs[i].Seq < recs[j].Seq
	})
}
