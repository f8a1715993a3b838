package prompt

import (
	"context"

	"github.com/rpggio/promptkeeper/internal/repository"
)

// Store provides versioned persistence for the serialized collection.
type Store interface {
	Get(ctx context.Context, key string) (repository.Entry, error)
	CompareAndSwap(ctx context.Context, key string, value []byte, expectedRevision int64) (int64, error)
}
