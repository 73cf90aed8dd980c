package cache

import (
	"context"
	"fmt"
	"time"
)

// Key kinds. Analysis results and question answers live in the same store
// but carry different TTLs, so the kind is part of the key.
const (
	KindAnalysis = "analysis"
	KindQuestion = "question"
)

// Key is the structured cache key. Hash is a sha256 hex digest of the
// normalized input (see fingerprint.go); VersionID lets a deploy invalidate
// every entry at once by bumping SCAN_VERSION.
type Key struct {
	Kind      string
	Locale    string
	VersionID string
	Hash      string
}

// String renders the final string used in Redis/map.
func (k Key) String() string {
	// scan:<kind>:<locale>:<version>:<hash_hex>
	return fmt.Sprintf("scan:%s:%s:%s:%s", k.Kind, k.Locale, k.VersionID, k.Hash)
}

// Store is the interface the pipeline depends on.
// Implemented by the memory store (dev/tests) and the Redis store (prod).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
