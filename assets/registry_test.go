package assets_test

import (
	"context"
	"testing"

	"github.com/sibylline/appkit/assets"
	"github.com/sibylline/appkit/store"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("resets by default", func(t *testing.T) {
		registry := assets.NewRegistry()
		collection, st := newCollection(t, &fakeFetcher{})
		require.NoError(t, st.Mutate("members", []store.Item{{"id": 1}}, store.ModeRefresh))

		require.NoError(t, registry.Register("members", collection))

		n, err := st.Len("members")
		require.NoError(t, err)
		require.Zero(t, n)

		got, err := registry.Get("members")
		require.NoError(t, err)
		require.Same(t, collection, got)
	})

	t.Run("without reset keeps contents", func(t *testing.T) {
		registry := assets.NewRegistry()
		collection, st := newCollection(t, &fakeFetcher{})
		require.NoError(t, st.Mutate("members", []store.Item{{"id": 1}}, store.ModeRefresh))

		require.NoError(t, registry.Register("members", collection, assets.WithoutReset()))

		n, err := st.Len("members")
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("nil collection rejected", func(t *testing.T) {
		registry := assets.NewRegistry()
		err := registry.Register("members", nil)
		require.ErrorIs(t, err, assets.ErrCollectionUnavailable)
	})
}

func TestRegistry_Import(t *testing.T) {
	registry := assets.NewRegistry()

	fetcher := &fakeFetcher{fallback: fetchReply{data: []any{record(1, nil), record(2, nil)}}}
	collection, st := newCollection(t, fetcher)

	// Pre-existing contents are cleared by the import's reset, then the
	// full load repopulates; registration must not reset a second time.
	require.NoError(t, st.Mutate("members", []store.Item{{"id": 99}}, store.ModeRefresh))

	require.NoError(t, registry.Import(context.Background(), "members", collection))
	require.Len(t, fetcher.calls, 1)

	n, err := st.Len("members")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, found, err := st.Get("members", 99)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRegistry_Get(t *testing.T) {
	registry := assets.NewRegistry()
	_, err := registry.Get("never-registered")
	require.ErrorIs(t, err, assets.ErrCollectionUndefined)
}
