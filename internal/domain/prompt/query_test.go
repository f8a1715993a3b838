package prompt_test

import (
	"context"
	"testing"

	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/stretchr/testify/require"
)

func titles(prompts []prompt.Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Title
	}
	return out
}

func TestFilterPrompts(t *testing.T) {
	prompts := []prompt.Prompt{
		{ID: "1", Title: "Code Review", Content: "check this", Tags: []string{}},
		{ID: "2", Title: "Email", Content: "write a CODE of conduct", Tags: []string{}},
		{ID: "3", Title: "Poem", Content: "roses", Tags: []string{"Creative"}},
		{ID: "4", Title: "Other", Content: "nothing", Tags: []string{}},
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "empty returns all", query: "", want: []string{"Code Review", "Email", "Poem", "Other"}},
		{name: "blank returns all", query: "   ", want: []string{"Code Review", "Email", "Poem", "Other"}},
		{name: "title and content", query: "code", want: []string{"Code Review", "Email"}},
		{name: "tag", query: "creat", want: []string{"Poem"}},
		{name: "trimmed", query: "  ROSES ", want: []string{"Poem"}},
		{name: "no match", query: "zzz", want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, titles(prompt.FilterPrompts(prompts, tc.query)))
		})
	}
}

func TestPromptService_Search(t *testing.T) {
	svc, _ := newTestService(t, prompt.Options{})
	mustCreate(t, svc, "alpha", "one", "greek")
	mustCreate(t, svc, "beta", "two")

	got, err := svc.Search(context.Background(), "GREEK")
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, titles(got))

	got, err = svc.Search(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"beta", "alpha"}, titles(got))
}

func TestRankByUsage(t *testing.T) {
	prompts := []prompt.Prompt{
		{Title: "five", UsageCount: 5},
		{Title: "zero", UsageCount: 0},
		{Title: "three-a", UsageCount: 3},
		{Title: "three-b", UsageCount: 3},
	}

	require.Equal(t, []string{"five", "three-a"}, titles(prompt.RankByUsage(prompts, 2)))
	require.Equal(t, []string{"five", "three-a", "three-b"}, titles(prompt.RankByUsage(prompts, 0)))
	require.Equal(t, "five", prompts[0].Title, "input must not be reordered")
}

func TestPromptService_MostUsed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, prompt.Options{})
	a := mustCreate(t, svc, "a", "1")
	b := mustCreate(t, svc, "b", "2")
	mustCreate(t, svc, "c", "3")

	for i := 0; i < 2; i++ {
		_, err := svc.IncrementUsage(ctx, a.ID)
		require.NoError(t, err)
	}
	_, err := svc.IncrementUsage(ctx, b.ID)
	require.NoError(t, err)

	got, err := svc.MostUsed(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, titles(got))
}

func TestPromptService_Favorites(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, prompt.Options{})
	a := mustCreate(t, svc, "a", "1")
	mustCreate(t, svc, "b", "2")
	c := mustCreate(t, svc, "c", "3")

	for _, id := range []string{a.ID, c.ID} {
		_, err := svc.ToggleFavorite(ctx, id)
		require.NoError(t, err)
	}

	got, err := svc.Favorites(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a"}, titles(got))
}

func TestPromptService_Stats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, prompt.Options{})

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Count)
	require.Equal(t, 2, stats.TotalSize)
	require.Equal(t, 0, stats.AverageSize)
	require.Nil(t, stats.OldestCreatedAt)
	require.Nil(t, stats.NewestCreatedAt)

	first := mustCreate(t, svc, "a", "1")
	last := mustCreate(t, svc, "b", "2")

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Count)

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	encoded, err := prompt.EncodeCollection(all)
	require.NoError(t, err)
	require.Equal(t, len(encoded), stats.TotalSize)
	require.InDelta(t, float64(len(encoded))/2, float64(stats.AverageSize), 0.5)

	require.True(t, stats.OldestCreatedAt.Equal(first.CreatedAt.Time))
	require.True(t, stats.NewestCreatedAt.Equal(last.CreatedAt.Time))
}
