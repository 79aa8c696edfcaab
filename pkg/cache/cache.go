// Package cache provides pluggable result caching for the planner.
//
// Planning the same map with the same configuration and endpoints is fully
// deterministic, so serialized results can be reused across runs. Three
// backends are provided: NullCache (disabled), FileCache (local CLI usage),
// and RedisCache (shared deployments).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roverlab/traverse/pkg/terrain"
)

// TTLs per cached artifact kind. Terrain stacks change when their source
// files do, so their fingerprints live longer than derived results.
const (
	// TTLStack is the lifetime of cached stack fingerprints.
	TTLStack = 7 * 24 * time.Hour

	// TTLResult is the lifetime of cached planning results.
	TTLResult = 24 * time.Hour
)

// Cache is a byte-oriented key/value store with per-entry TTLs.
// Implementations are safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was found and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// PlanKeyOpts carries the query parameters that change the result beyond
// the configuration and endpoints.
type PlanKeyOpts struct {
	LabelCap int
}

// Keyer derives cache keys for planner artifacts.
type Keyer interface {
	// StackKey identifies a loaded terrain stack by its configuration
	// fingerprint.
	StackKey(configHash string) string

	// PlanKey identifies one planning result.
	PlanKey(stackHash, planHash string, start, goal terrain.Coord, opts PlanKeyOpts) string
}

// DefaultKeyer hashes all key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// StackKey implements [Keyer].
func (k *DefaultKeyer) StackKey(configHash string) string {
	return hashKey("stack", configHash)
}

// PlanKey implements [Keyer].
func (k *DefaultKeyer) PlanKey(stackHash, planHash string, start, goal terrain.Coord, opts PlanKeyOpts) string {
	return hashKey("plan", stackHash, planHash, start, goal, opts)
}

// ScopedKeyer wraps a Keyer with a prefix so multiple tenants or missions
// can share one cache backend without key collisions.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every key. A nil
// inner keyer falls back to the default.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// StackKey implements [Keyer].
func (k *ScopedKeyer) StackKey(configHash string) string {
	return k.prefix + k.inner.StackKey(configHash)
}

// PlanKey implements [Keyer].
func (k *ScopedKeyer) PlanKey(stackHash, planHash string, start, goal terrain.Coord, opts PlanKeyOpts) string {
	return k.prefix + k.inner.PlanKey(stackHash, planHash, start, goal, opts)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...interface{}) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
