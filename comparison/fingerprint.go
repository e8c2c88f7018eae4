package comparison

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/minio/highwayhash"
)

// fingerprintKey is the fixed HighwayHash key. Changing it changes every
// comparison ID.
var fingerprintKey = []byte("synteny-viewer-fasta-fingerprint")

// Fingerprint returns the HighwayHash-64 of the contents of the file at
// path, as 16 hex digits.
func Fingerprint(ctx context.Context, path string) (fp string, err error) {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return "", errors.E(err, "open", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if _, err = io.Copy(h, in.Reader(ctx)); err != nil {
		return "", errors.E(err, "read", path)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// ID returns the comparison ID of a query and target fingerprint pair.
func ID(queryFingerprint, targetFingerprint string) string {
	return queryFingerprint[:8] + "_" + targetFingerprint[:8]
}

type fingerprintEntry struct {
	size    int64
	modTime time.Time
	fp      string
}

// fingerprintCache remembers fingerprints until the file's size or
// modification time changes, so genomes are not rehashed on every listing.
type fingerprintCache struct {
	mu sync.Mutex
	m  map[string]fingerprintEntry
}

func (c *fingerprintCache) init() {
	c.mu.Lock()
	c.m = map[string]fingerprintEntry{}
	c.mu.Unlock()
}

func (c *fingerprintCache) get(ctx context.Context, path string) (string, error) {
	info, err := file.Stat(ctx, path)
	if err != nil {
		return "", errors.E(err, "stat", path)
	}
	c.mu.Lock()
	e, ok := c.m[path]
	c.mu.Unlock()
	if ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.fp, nil
	}
	fp, err := Fingerprint(ctx, path)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.m[path] = fingerprintEntry{size: info.Size(), modTime: info.ModTime(), fp: fp}
	c.mu.Unlock()
	return fp, nil
}

func (c *fingerprintCache) forget(path string) {
	c.mu.Lock()
	delete(c.m, path)
	c.mu.Unlock()
}
