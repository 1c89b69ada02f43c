package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSettings_Empty(t *testing.T) {
	s := createTestStore(t)

	values, rev, err := s.ReadSettings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)
	assert.Equal(t, int64(0), rev)
}

func TestWriteSettings_RoundTripAndRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rev, err := s.WriteSettings(ctx, map[string][]byte{
		"enabled": []byte(`true`),
		"sound":   []byte(`"none"`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	rev, err = s.WriteSettings(ctx, map[string][]byte{"enabled": []byte(`false`)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	values, readRev, err := s.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), readRev)
	assert.Equal(t, map[string][]byte{
		"enabled": []byte(`false`),
		"sound":   []byte(`"none"`),
	}, values)

	current, err := s.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)
}

func TestDeleteSettings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteSettings(ctx, map[string][]byte{
		"a": []byte(`1`),
		"b": []byte(`2`),
	})
	require.NoError(t, err)

	rev, err := s.DeleteSettings(ctx, "a", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	values, _, err := s.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"b": []byte(`2`)}, values)
}

func TestRevision_VisibleAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	reader, err := Open(path)
	require.NoError(t, err)
	defer reader.Close()

	writer, err := Open(path)
	require.NoError(t, err)
	defer writer.Close()

	_, err = writer.WriteSettings(ctx, map[string][]byte{"enabled": []byte(`false`)})
	require.NoError(t, err)

	rev, err := reader.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	values, _, err := reader.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`false`), values["enabled"])
}

func TestWriteSettings_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.WriteSettings(ctx, map[string][]byte{"a": []byte(`1`)})
	require.Error(t, err)

	rev, err := s.Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rev, "failed write must not bump the revision")
}
