// Package blob is the boundary with binary object storage: store bytes,
// get back a stable reference.
package blob

import "context"

// Store persists a blob and returns a stable URL for it. Implementations
// may be slow and may fail; callers treat both as gateway-style errors.
type Store interface {
	Store(ctx context.Context, data []byte, contentTypeHint string) (string, error)
}
