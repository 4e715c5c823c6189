package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyKeepsExtension(t *testing.T) {
	key := objectKey("Screen Shot.PNG")
	assert.True(t, strings.HasPrefix(key, "attachments/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, key, objectKey("Screen Shot.PNG"))

	assert.NotContains(t, objectKey(`..\..\evil.exe`), "..")
	assert.False(t, strings.Contains(objectKey("noext"), "."))
}

func TestMemoryStorePutAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	att, err := store.Put(ctx, Upload{FileName: "log.txt", Body: strings.NewReader("boom")})
	require.NoError(t, err)
	assert.Equal(t, "log.txt", att.FileName)
	assert.Equal(t, "application/octet-stream", att.ContentType)
	assert.Equal(t, int64(4), att.SizeBytes)

	data, ok := store.Get(att.Key)
	require.True(t, ok)
	assert.Equal(t, "boom", string(data))

	require.NoError(t, store.Delete(ctx, att.Key))
	assert.ErrorIs(t, store.Delete(ctx, att.Key), ErrObjectNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStorePutHonorsCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, Upload{FileName: "a.png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}
