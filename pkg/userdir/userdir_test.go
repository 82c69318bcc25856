package userdir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calibot/assistant-relay/pkg/thread"
)

func TestMemoryDirectory_UpsertAndLookup(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	require.NoError(t, dir.Upsert(ctx, Entry{
		UserID:      thread.UserID("u1"),
		Username:    "kai",
		DisplayName: "Kai R",
	}))

	entry, err := dir.Lookup(ctx, thread.UserID("u1"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "kai", entry.Username)
	assert.False(t, entry.LastUpdated.IsZero())
}

func TestMemoryDirectory_UpsertReplaces(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	require.NoError(t, dir.Upsert(ctx, Entry{UserID: "u1", Username: "old"}))
	require.NoError(t, dir.Upsert(ctx, Entry{UserID: "u1", Username: "new"}))

	entry, err := dir.Lookup(ctx, thread.UserID("u1"))
	require.NoError(t, err)
	assert.Equal(t, "new", entry.Username)
}

func TestMemoryDirectory_LookupUnknown(t *testing.T) {
	dir := NewMemoryDirectory()

	entry, err := dir.Lookup(context.Background(), thread.UserID("nobody"))
	require.NoError(t, err)
	assert.Nil(t, entry)
}
