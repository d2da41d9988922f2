package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/psanford/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCredentialsFS(t *testing.T, contents string) *memfs.FS {
	t.Helper()

	rootFS := memfs.New()
	require.NoError(t, rootFS.WriteFile("credentials.json", []byte(contents), 0644))

	return rootFS
}

func TestFileSource_Resolve(t *testing.T) {
	rootFS := testCredentialsFS(t, `[
	{"Name": "default", "AccessKeyID": "AKID", "SecretAccessKey": "SECRET"},
	{"Name": "session", "AccessKeyID": "AKID2", "SecretAccessKey": "SECRET2", "SessionToken": "SESSION"}
]`)

	t.Run("DefaultProfile", func(t *testing.T) {
		source, err := NewFileSource(zap.NewNop(), rootFS, "credentials.json", "", time.Minute)
		require.NoError(t, err)

		creds, err := source.Resolve(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "AKID", creds.AccessKeyID)
		assert.Equal(t, "SECRET", creds.SecretAccessKey)
		assert.Equal(t, "File:default", creds.Source)
	})
	t.Run("NamedProfile", func(t *testing.T) {
		source, err := NewFileSource(zap.NewNop(), rootFS, "credentials.json", "session", time.Minute)
		require.NoError(t, err)

		creds, err := source.Resolve(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "AKID2", creds.AccessKeyID)
		assert.Equal(t, "SESSION", creds.SessionToken)
	})
	t.Run("MissingProfile", func(t *testing.T) {
		source, err := NewFileSource(zap.NewNop(), rootFS, "credentials.json", "absent", time.Minute)
		require.NoError(t, err)

		_, err = source.Resolve(context.Background())
		assert.ErrorIs(t, err, ErrNoCredentials)
	})
	t.Run("Cancelled", func(t *testing.T) {
		source, err := NewFileSource(zap.NewNop(), rootFS, "credentials.json", "", time.Minute)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = source.Resolve(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileSource_Reload(t *testing.T) {
	rootFS := testCredentialsFS(t, `[{"AccessKeyID": "AKID", "SecretAccessKey": "SECRET"}]`)

	source, err := NewFileSource(zap.NewNop(), rootFS, "credentials.json", "", 0)
	require.NoError(t, err)

	creds, err := source.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)

	// The cache duration is zero so the next Resolve re-reads the file.
	require.NoError(t, rootFS.WriteFile("credentials.json", []byte(`[{"AccessKeyID": "ROTATED", "SecretAccessKey": "SECRET"}]`), 0644))

	creds, err = source.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ROTATED", creds.AccessKeyID)
}

func TestFileSource_Invalid(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		_, err := NewFileSource(zap.NewNop(), memfs.New(), "credentials.json", "", time.Minute)
		assert.Error(t, err)
	})
	t.Run("Malformed", func(t *testing.T) {
		rootFS := testCredentialsFS(t, `{"not": "a list"}`)

		_, err := NewFileSource(zap.NewNop(), rootFS, "credentials.json", "", time.Minute)
		assert.Error(t, err)
	})
	t.Run("DuplicateProfile", func(t *testing.T) {
		rootFS := testCredentialsFS(t, `[
	{"AccessKeyID": "A", "SecretAccessKey": "S"},
	{"AccessKeyID": "B", "SecretAccessKey": "S"}
]`)

		_, err := NewFileSource(zap.NewNop(), rootFS, "credentials.json", "", time.Minute)
		assert.ErrorContains(t, err, "multiple profiles with the same name")
	})
}
