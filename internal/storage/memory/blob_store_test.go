package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"summary":"ok"}`)
	uri, err := store.PutObject(context.Background(), "audits/job-1/document.json", "application/json", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://audits/job-1/document.json", uri)

	payload[0] = '['
	stored, ok := store.Object("audits/job-1/document.json")
	require.True(t, ok)
	assert.Equal(t, `{"summary":"ok"}`, string(stored))

	stored[0] = '['
	again, _ := store.Object("audits/job-1/document.json")
	assert.Equal(t, `{"summary":"ok"}`, string(again))
}

func TestBlobStoreOverwriteAndMissing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	_, err := store.PutObject(ctx, "audits/job-2/evidence.json", "application/json", []byte("v1"))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "audits/job-2/evidence.json", "application/json", []byte("v2"))
	require.NoError(t, err)

	stored, ok := store.Object("audits/job-2/evidence.json")
	require.True(t, ok)
	assert.Equal(t, "v2", string(stored))

	_, ok = store.Object("audits/job-3/evidence.json")
	assert.False(t, ok)
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "", nil)
	require.Error(t, err)
}
