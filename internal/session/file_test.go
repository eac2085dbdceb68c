package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store, err := OpenFileStore(path)
	require.NoError(t, err)

	s, err := store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestFileStorePutSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store, err := OpenFileStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	want := Session{Token: "tok", ProjectID: "2", NextAction: ActionNone}
	require.NoError(t, store.Put(ctx, "42", want))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreReadsLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	legacy := `{"42": {"token": "tok", "project": "2"}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	got, err := store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, ActionInsertToken, got.NextAction)
	assert.Equal(t, "tok", got.Token)
}

func TestFileStoreReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store, err := OpenFileStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "1", Session{Token: "old"}))

	next := map[string]Session{
		"2": {Token: "new", NextAction: ActionNone},
	}
	require.NoError(t, store.Replace(ctx, next))

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, all)

	gone, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, Default(), gone)
}

func TestFileStoreAllReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store, err := OpenFileStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "1", Session{Token: "tok"}))

	all, err := store.All(ctx)
	require.NoError(t, err)
	all["1"] = Session{Token: "mutated"}

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
}
