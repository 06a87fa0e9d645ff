package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-storefront/storage"
	"github.com/jrsteele09/go-storefront/storage/filestore"
	"github.com/stretchr/testify/require"
)

func testKey() *[32]byte {
	var k [32]byte
	for i := range k {
		k[i] = byte(i)
	}
	return &k
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("values survive a new instance", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state", "state.json")
		s, err := filestore.New(path)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, map[string]string{"a": "1", "b": "2"}))

		reopened, err := filestore.New(path)
		require.NoError(t, err)
		v, err := reopened.Get(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, "2", v)

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("missing key and missing file", func(t *testing.T) {
		s, err := filestore.New(filepath.Join(t.TempDir(), "state.json"))
		require.NoError(t, err)
		_, err = s.Get(ctx, "a")
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, s.Delete(ctx, "a"))
	})

	t.Run("delete removes keys", func(t *testing.T) {
		s, err := filestore.New(filepath.Join(t.TempDir(), "state.json"))
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, map[string]string{"a": "1", "b": "2"}))
		require.NoError(t, s.Delete(ctx, "a"))

		_, err = s.Get(ctx, "a")
		require.ErrorIs(t, err, storage.ErrNotFound)
		v, err := s.Get(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, "2", v)
	})

	t.Run("encrypted values are not stored in plain text", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		s, err := filestore.New(path, filestore.WithEncryptionKey(testKey()))
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, map[string]string{"token": "super-secret-value"}))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.False(t, strings.Contains(string(raw), "super-secret-value"))

		v, err := s.Get(ctx, "token")
		require.NoError(t, err)
		require.Equal(t, "super-secret-value", v)
	})

	t.Run("encryption mismatch is reported", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		plain, err := filestore.New(path)
		require.NoError(t, err)
		require.NoError(t, plain.Set(ctx, map[string]string{"a": "1"}))

		sealed, err := filestore.New(path, filestore.WithEncryptionKey(testKey()))
		require.NoError(t, err)
		_, err = sealed.Get(ctx, "a")
		require.Error(t, err)
	})
}
