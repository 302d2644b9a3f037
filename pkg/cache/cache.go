// Package cache provides the snapshot and appearance cache used by the
// rendering pipeline.
//
// Rendered PNGs are cached by content key (manifest URL + output size), so
// a semantic change to rendering requires a new manifest URL or an explicit
// purge. Several backends are available:
//   - file: persistent, for CLI and single-instance deployments
//   - redis: shared, for multi-instance deployments
//   - memory: process-local, for development and tests
//   - null: caching disabled
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Default TTLs per cached artifact class. Snapshots are content-addressed,
// so they effectively never go stale; the TTL only bounds storage growth.
const (
	TTLSnapshot = 30 * 24 * time.Hour
	TTLManifest = time.Hour
)

// Cache is the interface implemented by all cache backends.
type Cache interface {
	// Get retrieves a value by key. The second return value reports
	// whether the key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A TTL of 0 means
	// the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// SnapshotKey derives the cache key for a rendered snapshot. The manifest
// URL and output size together identify the image content.
func SnapshotKey(manifestURL string, size int) string {
	return hashKey("snapshot", manifestURL, size)
}

// ManifestKey derives the cache key for a fetched manifest document.
func ManifestKey(manifestURL string) string {
	return hashKey("manifest", manifestURL)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v\x00", p)
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
