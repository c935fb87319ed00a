package hnswkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hnswkit/blobstore"
	"github.com/hupe1980/hnswkit/internal/persistence"
)

// ImageNames returns the blob names Publish writes for name.
func ImageNames(name string) (graph, data string) {
	return name + persistence.GraphSuffix, name + persistence.DataSuffix
}

func validateImageName(name string) error {
	base := path.Base(name)
	if name == "" || strings.HasSuffix(name, "/") || strings.Contains(name, `\`) || base == "." || base == ".." {
		return &IOError{Msg: fmt.Sprintf("invalid image name %q", name)}
	}
	return nil
}

// Publish saves the index into a staging directory and uploads both image
// files to store as <name>.hnsw.graph and <name>.hnsw.data. name may contain
// slashes to group images under a prefix.
//
// The data file is uploaded before the graph file. A failed upload is aborted,
// so a blob that existed before the call keeps its old contents unless its own
// upload completed; Load rejects a graph file paired with another image's data
// file. Blobs that this call created are deleted again on failure. Publishing
// each version under a fresh name and committing it with PublishAndCommit
// avoids touching the live image at all.
//
// Failures return a DumpError.
func (ix *Index) Publish(ctx context.Context, store blobstore.BlobStore, name string) (err error) {
	defer func() { ix.logger.LogPublish(ctx, "publish", name, err) }()

	if err := validateImageName(name); err != nil {
		return err
	}

	root := ix.opts.stagingDir
	if root == "" {
		root = os.TempDir()
	}
	staging := filepath.Join(root, "hnswkit-publish-"+uuid.NewString())
	base := path.Base(name)
	defer ix.removeStaging(staging, base)

	if err := ix.Save(staging, base); err != nil {
		return err
	}

	graphBlob, dataBlob := ImageNames(name)
	uploads := []struct{ local, remote string }{
		{persistence.DataPath(staging, base), dataBlob},
		{persistence.GraphPath(staging, base), graphBlob},
	}

	var created []string
	for _, u := range uploads {
		existed, err := blobExists(ctx, store, u.remote)
		if err == nil {
			err = ix.upload(ctx, store, u.local, u.remote)
		}
		if err != nil {
			for _, remote := range created {
				_ = store.Delete(context.WithoutCancel(ctx), remote)
			}
			return &DumpError{Cause: err}
		}
		if !existed {
			created = append(created, u.remote)
		}
	}
	return nil
}

func blobExists(ctx context.Context, store blobstore.BlobStore, name string) (bool, error) {
	b, err := store.Open(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return true, b.Close()
}

func (ix *Index) upload(ctx context.Context, store blobstore.BlobStore, local, remote string) error {
	f, err := ix.opts.fs.OpenFile(local, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := store.Create(ctx, remote)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = blobstore.Abort(w)
		return fmt.Errorf("upload %s: %w", remote, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", remote, err)
	}
	return nil
}

func (ix *Index) removeStaging(dir, base string) {
	_ = ix.opts.fs.Remove(persistence.GraphPath(dir, base))
	_ = ix.opts.fs.Remove(persistence.DataPath(dir, base))
	_ = ix.opts.fs.Remove(dir)
}

// PublishAndCommit publishes the image and then records name with committer.
// The commit happens only after both files were uploaded.
func (ix *Index) PublishAndCommit(ctx context.Context, store blobstore.BlobStore, committer blobstore.Committer, name string) (blobstore.Commit, error) {
	if err := ix.Publish(ctx, store, name); err != nil {
		return blobstore.Commit{}, err
	}
	commit, err := committer.Commit(ctx, name)
	ix.logger.LogPublish(ctx, "commit", name, err)
	if err != nil {
		return blobstore.Commit{}, &DumpError{Cause: err}
	}
	return commit, nil
}

// Fetch downloads the image name from store into cacheDir and loads it.
// Both files are downloaded under temporary names and renamed into place
// together, so cacheDir never holds half an image. Download failures return
// a ReloadError; a missing image unwraps to blobstore.ErrNotFound.
func Fetch(ctx context.Context, store blobstore.BlobStore, name, cacheDir string, cfg Config, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)
	err := fetch(ctx, store, name, cacheDir, o)
	o.logger.LogPublish(ctx, "fetch", name, err)
	if err != nil {
		return nil, err
	}
	return Load(cacheDir, path.Base(name), cfg, optFns...)
}

func fetch(ctx context.Context, store blobstore.BlobStore, name, cacheDir string, o options) error {
	if err := validateImageName(name); err != nil {
		return err
	}

	graphBlob, dataBlob := ImageNames(name)
	blobs := make([]blobstore.Blob, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, remote := range []string{graphBlob, dataBlob} {
		g.Go(func() error {
			b, err := store.Open(gctx, remote)
			if err != nil {
				return fmt.Errorf("open %s: %w", remote, err)
			}
			blobs[i] = b
			return nil
		})
	}
	err := g.Wait()
	defer func() {
		for _, b := range blobs {
			if b != nil {
				_ = b.Close()
			}
		}
	}()
	if err != nil {
		return &ReloadError{Cause: err}
	}

	base := path.Base(name)
	copyBlob := func(b blobstore.Blob) func(io.Writer) error {
		return func(w io.Writer) error {
			n, err := copyFrom(ctx, w, b)
			if err != nil {
				return err
			}
			if n != b.Size() {
				return fmt.Errorf("short download: %d of %d bytes", n, b.Size())
			}
			return nil
		}
	}
	_, err = persistence.AtomicSaveToDir(o.fs, cacheDir, []persistence.FileWriter{
		{Name: base + persistence.GraphSuffix, Write: copyBlob(blobs[0])},
		{Name: base + persistence.DataSuffix, Write: copyBlob(blobs[1])},
	})
	if err != nil {
		return &ReloadError{Cause: err}
	}
	return nil
}

// copyFrom writes b to w, straight from the mapping when b is mapped.
func copyFrom(ctx context.Context, w io.Writer, b blobstore.Blob) (int64, error) {
	m, ok := b.(blobstore.Mappable)
	if !ok {
		return blobstore.Copy(ctx, w, b)
	}
	data, err := m.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// FetchLatest resolves the current image through committer and fetches it.
func FetchLatest(ctx context.Context, store blobstore.BlobStore, committer blobstore.Committer, cacheDir string, cfg Config, optFns ...Option) (*Index, blobstore.Commit, error) {
	commit, err := committer.Latest(ctx)
	if err != nil {
		return nil, blobstore.Commit{}, &ReloadError{Cause: err}
	}
	ix, err := Fetch(ctx, store, commit.Name, cacheDir, cfg, optFns...)
	if err != nil {
		return nil, blobstore.Commit{}, err
	}
	return ix, commit, nil
}
