package s3

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/hnswkit/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Integration runs against a real bucket named by S3_BUCKET.
func TestStore_Integration(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}

	ctx := context.Background()
	store, err := New(ctx, bucket,
		WithPrefix("hnswkit-it-"+uuid.NewString()+"/"),
		WithRegion(os.Getenv("AWS_REGION")),
	)
	require.NoError(t, err)

	image := make([]byte, 3<<20)
	_, _ = rand.Read(image)

	t.Run("StreamingUpload", func(t *testing.T) {
		w, err := store.Create(ctx, "idx/v1.hnsw.data")
		require.NoError(t, err)
		_, err = w.Write(image)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		t.Cleanup(func() { _ = store.Delete(ctx, "idx/v1.hnsw.data") })

		names, err := store.List(ctx, "idx/")
		require.NoError(t, err)
		assert.Equal(t, []string{"idx/v1.hnsw.data"}, names)

		b, err := store.Open(ctx, "idx/v1.hnsw.data")
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, int64(len(image)), b.Size())

		tail := make([]byte, 64)
		n, err := b.ReadAt(ctx, tail, b.Size()-32)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, image[len(image)-32:], tail[:n])

		r, err := b.ReadRange(ctx, 1<<20, 4096)
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, r.Close())
		require.NoError(t, err)
		assert.Equal(t, image[1<<20:1<<20+4096], got)
	})

	t.Run("Abort", func(t *testing.T) {
		w, err := store.Create(ctx, "aborted")
		require.NoError(t, err)
		_, err = w.Write(image[:1024])
		require.NoError(t, err)
		require.NoError(t, blobstore.Abort(w))

		_, err = store.Open(ctx, "aborted")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Put", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "CURRENT", []byte(`{"version":1}`)))
		t.Cleanup(func() { _ = store.Delete(ctx, "CURRENT") })

		b, err := store.Open(ctx, "CURRENT")
		require.NoError(t, err)
		assert.Equal(t, int64(13), b.Size())
	})
}
