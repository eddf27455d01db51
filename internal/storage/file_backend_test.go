package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileBackendWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, backend.Write("sessions/abc/session_metadata.json", []byte(`{"a":1}`)))

	data, err := backend.Read("sessions/abc/session_metadata.json")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(data))
}

func TestFileBackendReadMissingIsNotFound(t *testing.T) {
	t.Parallel()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Read("missing.json")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestFileBackendDeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, backend.Write("k", []byte("v")))
	require.NoError(t, backend.Delete("k"))
	require.NoError(t, backend.Delete("k"))
}

func TestFileBackendSanitizesTraversal(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	backend, err := NewFileBackend(base)
	require.NoError(t, err)

	require.NoError(t, backend.Write("../../etc/passwd", []byte("x")))

	path, err := backend.sanitize("../../etc/passwd")
	require.NoError(t, err)
	rel, err := filepath.Rel(base, path)
	require.NoError(t, err)
	require.False(t, filepath.IsAbs(rel))
	require.NotContains(t, rel, "..")
}

func TestFileBackendListWithLimitOnEmptyStore(t *testing.T) {
	t.Parallel()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	result, err := backend.List("", 0, "")
	require.NoError(t, err)
	require.Empty(t, result.Items)
}

func TestFileBackendAppendLineIsDurableAndOrdered(t *testing.T) {
	t.Parallel()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, backend.AppendLine("events.jsonl", []byte(`{"seq":1}`)))
	require.NoError(t, backend.AppendLine("events.jsonl", []byte(`{"seq":2}`)))

	data, err := backend.Read("events.jsonl")
	require.NoError(t, err)
	require.Equal(t, "{\"seq\":1}\n{\"seq\":2}\n", string(data))
}
