package badger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "history")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "missing directory is created")
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	backend, err := OpenBackend(path, false)
	if backend != nil {
		backend.Close()
	}
	assert.ErrorContains(t, err, "is not a directory")
}

func TestOpenBackend_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	backend, err := OpenBackend("", true, WithLogger(logger))
	require.NoError(t, err)
	defer backend.Close()

	assert.Same(t, logger, backend.logger)
	assert.Contains(t, buf.String(), "history backend opened")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestWithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	t.Run("successful transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			assert.NotNil(t, backend.txFromContext(ctx))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction", func(t *testing.T) {
		testErr := assert.AnError
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return testErr
		})
		assert.Equal(t, testErr, err)
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(outer context.Context) error {
			return backend.WithTransaction(outer, func(inner context.Context) error {
				assert.Same(t, backend.txFromContext(outer), backend.txFromContext(inner))
				return nil
			})
		})
		require.NoError(t, err)
	})

	t.Run("other backend does not join", func(t *testing.T) {
		other, err := OpenBackend("", true)
		require.NoError(t, err)
		defer other.Close()

		err = backend.WithTransaction(ctx, func(ctx context.Context) error {
			assert.Nil(t, other.txFromContext(ctx))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("no transaction outside", func(t *testing.T) {
		assert.Nil(t, backend.txFromContext(ctx))
	})
}

func TestGetSequence(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("test_sequence")
	require.NoError(t, err)
	require.NotNil(t, seq)
	defer seq.Release()

	id1, err := seq.Next()
	require.NoError(t, err)
	id2, err := seq.Next()
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
}
