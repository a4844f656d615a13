// Package storage persists generated audio. MinIO backs production
// deployments; the filesystem store covers development and tests.
package storage

import "context"

// Store is an opaque blob store keyed by slash-separated keys.
type Store interface {
	// Write persists the bytes under the given key and returns the key the
	// blob is reachable at.
	Write(ctx context.Context, key string, data []byte) (string, error)
	// Read loads a blob by key.
	Read(ctx context.Context, key string) ([]byte, error)
}
