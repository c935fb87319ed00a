package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultCurrentName is the blob that BlobCommitter writes by default.
const DefaultCurrentName = "CURRENT"

// BlobCommitter records commits as a small JSON blob inside a BlobStore.
//
// It reads the current version before writing the next one, so it is only
// safe with a single writer. Use a store with conditional writes (such as the
// DynamoDB committer in blobstore/s3) when several writers publish concurrently.
type BlobCommitter struct {
	store BlobStore
	name  string
	now   func() time.Time
}

// NewBlobCommitter returns a committer that stores its pointer under name.
// An empty name selects DefaultCurrentName.
func NewBlobCommitter(store BlobStore, name string) *BlobCommitter {
	if name == "" {
		name = DefaultCurrentName
	}
	return &BlobCommitter{store: store, name: name, now: time.Now}
}

type commitRecord struct {
	Version uint64    `json:"version"`
	Name    string    `json:"name"`
	Time    time.Time `json:"time"`
}

// Commit records name as the next version.
func (c *BlobCommitter) Commit(ctx context.Context, name string) (Commit, error) {
	if name == "" {
		return Commit{}, errors.New("blobstore: empty commit name")
	}
	var next uint64 = 1
	latest, err := c.Latest(ctx)
	switch {
	case err == nil:
		next = latest.Version + 1
	case !errors.Is(err, ErrNotFound):
		return Commit{}, err
	}

	rec := commitRecord{Version: next, Name: name, Time: c.now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return Commit{}, err
	}
	if err := c.store.Put(ctx, c.name, data); err != nil {
		return Commit{}, err
	}
	return Commit(rec), nil
}

// Latest returns the most recent commit.
func (c *BlobCommitter) Latest(ctx context.Context) (Commit, error) {
	b, err := c.store.Open(ctx, c.name)
	if err != nil {
		return Commit{}, err
	}
	defer b.Close()

	data := make([]byte, b.Size())
	if len(data) > 0 {
		if _, err := b.ReadAt(ctx, data, 0); err != nil {
			return Commit{}, err
		}
	}
	var rec commitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Commit{}, err
	}
	return Commit(rec), nil
}
