package prompt_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/memory"
	"github.com/rpggio/promptkeeper/internal/repository"
	"github.com/rpggio/promptkeeper/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, opts prompt.Options) (*prompt.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	t.Cleanup(func() { store.Close() })
	return prompt.NewService(store, nil, opts), store
}

func mustCreate(t *testing.T, svc *prompt.Service, title, content string, tags ...string) *prompt.Prompt {
	t.Helper()
	p, err := svc.Create(context.Background(), prompt.CreateRequest{Title: title, Content: content, Tags: tags})
	require.NoError(t, err)
	return p
}

func TestPromptService_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, prompt.Options{})

	created := mustCreate(t, svc, "A", "B")

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "A", all[0].Title)
	require.Equal(t, "B", all[0].Content)
	require.Equal(t, 0, all[0].UsageCount)
	require.False(t, all[0].Favorite)
	require.NotNil(t, all[0].Tags)
	require.Nil(t, all[0].LastUsed)

	used, err := svc.IncrementUsage(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, used.UsageCount)
	require.NotNil(t, used.LastUsed)

	all, err = svc.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, all[0].UsageCount)
	require.NotNil(t, all[0].LastUsed)

	removed, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, removed)

	all, err = svc.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestPromptService_GetAllEmptyStore(t *testing.T) {
	svc, _ := newTestService(t, prompt.Options{})

	all, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, all)
	require.Empty(t, all)
}

func TestPromptService_Create_TrimsAndDefaults(t *testing.T) {
	svc, _ := newTestService(t, prompt.Options{})

	p := mustCreate(t, svc, "  Title  ", "\tBody\n")
	require.Equal(t, "Title", p.Title)
	require.Equal(t, "Body", p.Content)
	require.Equal(t, []string{}, p.Tags)
	require.Equal(t, p.CreatedAt, p.UpdatedAt)
	require.NotEmpty(t, p.ID)
}

func TestPromptService_Create_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, prompt.Options{})

	_, err := svc.Create(ctx, prompt.CreateRequest{Title: "   ", Content: "body"})
	require.ErrorIs(t, err, prompt.ErrInvalidInput)

	_, err = svc.Create(ctx, prompt.CreateRequest{Title: "title", Content: ""})
	require.ErrorIs(t, err, prompt.ErrInvalidInput)

	entry, err := store.Get(ctx, prompt.DefaultKey)
	require.NoError(t, err)
	require.False(t, entry.Exists(), "invalid prompts must not be persisted")
}

func TestPromptService_Create_NewestFirst(t *testing.T) {
	svc, _ := newTestService(t, prompt.Options{})

	mustCreate(t, svc, "first", "1")
	mustCreate(t, svc, "second", "2")

	all, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, "second", all[0].Title)
	require.Equal(t, "first", all[1].Title)
}

func TestPromptService_CapEvictsOldest(t *testing.T) {
	svc, _ := newTestService(t, prompt.Options{MaxPrompts: 5})

	for i := 1; i <= 7; i++ {
		mustCreate(t, svc, fmt.Sprintf("p%d", i), "content")
	}

	all, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, p := range all {
		require.Equal(t, fmt.Sprintf("p%d", 7-i), p.Title)
	}
}

func TestPromptService_DefaultCap(t *testing.T) {
	svc, _ := newTestService(t, prompt.Options{})
	require.Equal(t, 500, svc.MaxPrompts())
}

func TestPromptService_UniqueIDsAcrossContexts(t *testing.T) {
	store := memory.NewStore()
	// Two services on one store behave like two processes.
	a := prompt.NewService(store, nil, prompt.Options{MaxRetries: 100, RetryBackoff: time.Millisecond})
	b := prompt.NewService(store, nil, prompt.Options{MaxRetries: 100, RetryBackoff: time.Millisecond})

	const perService = 25
	errs := make(chan error, 2*perService)
	var wg sync.WaitGroup
	for _, svc := range []*prompt.Service{a, b} {
		for i := 0; i < perService; i++ {
			wg.Add(1)
			go func(svc *prompt.Service, i int) {
				defer wg.Done()
				_, err := svc.Create(context.Background(), prompt.CreateRequest{Title: fmt.Sprintf("t%d", i), Content: "c"})
				errs <- err
			}(svc, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := a.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2*perService, "no update may be lost")

	seen := make(map[string]bool)
	for _, p := range all {
		require.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestPromptService_Update_PreservesIdentity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, _ := newTestService(t, prompt.Options{Now: clock})

	orig := mustCreate(t, svc, "Old", "Body", "tag")
	_, err := svc.IncrementUsage(ctx, orig.ID)
	require.NoError(t, err)
	_, err = svc.ToggleFavorite(ctx, orig.ID)
	require.NoError(t, err)

	before, err := svc.Get(ctx, orig.ID)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	title := "X"
	updated, err := svc.Update(ctx, orig.ID, prompt.Patch{Title: &title})
	require.NoError(t, err)

	require.Equal(t, "X", updated.Title)
	require.Equal(t, before.ID, updated.ID)
	require.Equal(t, before.Content, updated.Content)
	require.Equal(t, before.CreatedAt, updated.CreatedAt)
	require.Equal(t, before.UsageCount, updated.UsageCount)
	require.Equal(t, before.LastUsed, updated.LastUsed)
	require.Equal(t, before.Tags, updated.Tags)
	require.Equal(t, before.Favorite, updated.Favorite)
	require.True(t, updated.UpdatedAt.After(before.UpdatedAt.Time))

	stored, err := svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	require.Equal(t, "X", stored.Title)
	require.True(t, stored.UpdatedAt.Equal(updated.UpdatedAt.Time))
}

func TestPromptService_Update_AllFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, prompt.Options{})
	orig := mustCreate(t, svc, "t", "c")

	content := "new content"
	tags := []string{"a", " ", "b "}
	fav := true
	updated, err := svc.Update(ctx, orig.ID, prompt.Patch{Content: &content, Tags: &tags, Favorite: &fav})
	require.NoError(t, err)
	require.Equal(t, "t", updated.Title)
	require.Equal(t, "new content", updated.Content)
	require.Equal(t, []string{"a", "b"}, updated.Tags)
	require.True(t, updated.Favorite)
}

func TestPromptService_Update_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, prompt.Options{})
	mustCreate(t, svc, "t", "c")

	before, err := store.Get(ctx, prompt.DefaultKey)
	require.NoError(t, err)

	title := "x"
	_, err = svc.Update(ctx, "missing", prompt.Patch{Title: &title})
	require.ErrorIs(t, err, prompt.ErrPromptNotFound)

	after, err := store.Get(ctx, prompt.DefaultKey)
	require.NoError(t, err)
	require.Equal(t, before.Revision, after.Revision)
}

func TestPromptService_Update_RejectsBlankTitle(t *testing.T) {
	svc, _ := newTestService(t, prompt.Options{})
	orig := mustCreate(t, svc, "t", "c")

	blank := "  "
	_, err := svc.Update(context.Background(), orig.ID, prompt.Patch{Title: &blank})
	require.ErrorIs(t, err, prompt.ErrInvalidInput)
}

func TestPromptService_Delete_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, prompt.Options{})
	mustCreate(t, svc, "t", "c")

	before, err := store.Get(ctx, prompt.DefaultKey)
	require.NoError(t, err)

	removed, err := svc.Delete(ctx, "missing")
	require.NoError(t, err)
	require.False(t, removed)

	after, err := store.Get(ctx, prompt.DefaultKey)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestPromptService_IncrementUsage_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, prompt.Options{})

	_, err := svc.IncrementUsage(ctx, "missing")
	require.ErrorIs(t, err, prompt.ErrPromptNotFound)

	entry, err := store.Get(ctx, prompt.DefaultKey)
	require.NoError(t, err)
	require.False(t, entry.Exists())
}

func TestPromptService_ToggleFavorite(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, prompt.Options{})
	p := mustCreate(t, svc, "t", "c")

	fav, err := svc.ToggleFavorite(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, fav)

	fav, err = svc.ToggleFavorite(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, fav)

	_, err = svc.ToggleFavorite(ctx, "missing")
	require.ErrorIs(t, err, prompt.ErrPromptNotFound)
}

func TestPromptService_Clear(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, prompt.Options{})
	mustCreate(t, svc, "t", "c")

	require.NoError(t, svc.Clear(ctx))

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	entry, err := store.Get(ctx, prompt.DefaultKey)
	require.NoError(t, err)
	require.Equal(t, "[]", string(entry.Value))
}

func TestPromptService_RetriesOnConflict(t *testing.T) {
	store := &mocks.KVStore{}
	store.On("Get", mock.Anything, prompt.DefaultKey).Return(repository.Entry{Key: prompt.DefaultKey, Value: []byte(`[]`), Revision: 3}, nil)
	store.On("CompareAndSwap", mock.Anything, prompt.DefaultKey, mock.Anything, int64(3)).Return(int64(0), repository.ErrConflict).Once()
	store.On("CompareAndSwap", mock.Anything, prompt.DefaultKey, mock.Anything, int64(3)).Return(int64(4), nil).Once()

	svc := prompt.NewService(store, nil, prompt.Options{RetryBackoff: time.Millisecond})
	p, err := svc.Create(context.Background(), prompt.CreateRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	require.Equal(t, "t", p.Title)

	store.AssertNumberOfCalls(t, "Get", 2)
	store.AssertNumberOfCalls(t, "CompareAndSwap", 2)
}

func TestPromptService_ConflictRetriesExhausted(t *testing.T) {
	store := &mocks.KVStore{}
	store.On("Get", mock.Anything, prompt.DefaultKey).Return(repository.Entry{Key: prompt.DefaultKey}, nil)
	store.On("CompareAndSwap", mock.Anything, prompt.DefaultKey, mock.Anything, int64(0)).Return(int64(0), repository.ErrConflict)

	svc := prompt.NewService(store, nil, prompt.Options{MaxRetries: 3, RetryBackoff: time.Millisecond})
	err := svc.Clear(context.Background())
	require.ErrorIs(t, err, prompt.ErrConflict)

	store.AssertNumberOfCalls(t, "CompareAndSwap", 3)
}

func TestPromptService_StoreUnavailable(t *testing.T) {
	store := &mocks.KVStore{}
	store.On("Get", mock.Anything, prompt.DefaultKey).Return(repository.Entry{}, repository.ErrUnavailable)

	svc := prompt.NewService(store, nil, prompt.Options{})

	_, err := svc.GetAll(context.Background())
	require.ErrorIs(t, err, prompt.ErrStoreUnavailable)

	_, err = svc.Create(context.Background(), prompt.CreateRequest{Title: "t", Content: "c"})
	require.ErrorIs(t, err, prompt.ErrStoreUnavailable)

	store.AssertNotCalled(t, "CompareAndSwap", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPromptService_CorruptCollection(t *testing.T) {
	store := &mocks.KVStore{}
	store.On("Get", mock.Anything, prompt.DefaultKey).Return(repository.Entry{Key: prompt.DefaultKey, Value: []byte(`{"not":"a list"}`), Revision: 1}, nil)

	svc := prompt.NewService(store, nil, prompt.Options{})

	_, err := svc.GetAll(context.Background())
	require.ErrorIs(t, err, prompt.ErrCorruptCollection)

	err = svc.Clear(context.Background())
	require.ErrorIs(t, err, prompt.ErrCorruptCollection)
	store.AssertNotCalled(t, "CompareAndSwap", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// stalledStore blocks every call until the context gives up.
type stalledStore struct{}

func (stalledStore) Get(ctx context.Context, key string) (repository.Entry, error) {
	<-ctx.Done()
	return repository.Entry{}, ctx.Err()
}

func (stalledStore) CompareAndSwap(ctx context.Context, key string, value []byte, expectedRevision int64) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestPromptService_OpTimeout(t *testing.T) {
	svc := prompt.NewService(stalledStore{}, nil, prompt.Options{OpTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := svc.GetAll(context.Background())
	require.ErrorIs(t, err, prompt.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)

	_, err = svc.Create(context.Background(), prompt.CreateRequest{Title: "t", Content: "c"})
	require.ErrorIs(t, err, prompt.ErrStoreUnavailable)
}
