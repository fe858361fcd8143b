package storage_test

import (
	"testing"

	"github.com/sibylline/appkit/storage"
	"github.com/stretchr/testify/require"
)

type sessionBlob struct {
	JWT string `json:"jwt"`
	Exp int64  `json:"exp"`
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		var out sessionBlob
		found, err := s.Get(storage.LocalUserKey, &out)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(storage.LocalUserKey, sessionBlob{JWT: "abc", Exp: 99}))

		var out sessionBlob
		found, err := s.Get(storage.LocalUserKey, &out)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "abc", out.JWT)
		require.Equal(t, int64(99), out.Exp)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(storage.LicenceKey, sessionBlob{JWT: "x"}))
		require.NoError(t, s.Delete(storage.LicenceKey))
		require.NoError(t, s.Delete(storage.LicenceKey))

		var out sessionBlob
		found, err := s.Get(storage.LicenceKey, &out)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(storage.LocalUserKey, sessionBlob{JWT: "a"}))
		require.NoError(t, s.Set(storage.LicenceKey, sessionBlob{JWT: "b"}))
		require.NoError(t, s.Clear())

		var out sessionBlob
		found, err := s.Get(storage.LocalUserKey, &out)
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestMemory(t *testing.T) {
	runStoreContract(t, func(t *testing.T) storage.Store {
		return storage.NewMemory()
	})
}

func TestFile(t *testing.T) {
	runStoreContract(t, func(t *testing.T) storage.Store {
		s, err := storage.NewFile(t.TempDir())
		require.NoError(t, err)
		return s
	})
}
