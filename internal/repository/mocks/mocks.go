package mocks

import (
	"context"

	"github.com/rpggio/promptkeeper/internal/repository"
	"github.com/stretchr/testify/mock"
)

// KVStore is a mock for repository.KVStore.
type KVStore struct {
	mock.Mock
}

func (m *KVStore) Get(ctx context.Context, key string) (repository.Entry, error) {
	args := m.Called(ctx, key)
	if entry, ok := args.Get(0).(repository.Entry); ok {
		return entry, args.Error(1)
	}
	return repository.Entry{}, args.Error(1)
}

func (m *KVStore) CompareAndSwap(ctx context.Context, key string, value []byte, expectedRevision int64) (int64, error) {
	args := m.Called(ctx, key, value, expectedRevision)
	return args.Get(0).(int64), args.Error(1)
}

func (m *KVStore) Watch(ctx context.Context, key string) (<-chan repository.Change, error) {
	args := m.Called(ctx, key)
	if ch, ok := args.Get(0).(<-chan repository.Change); ok {
		return ch, args.Error(1)
	}
	if ch, ok := args.Get(0).(chan repository.Change); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *KVStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
