package port

import "context"

// DocumentStore keeps generated documents under relative paths
type DocumentStore interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}
