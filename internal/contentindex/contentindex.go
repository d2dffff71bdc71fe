// Package contentindex implements a persistent content hash -> md_path
// index backed by pebble: the same access pattern that makes pebble a
// good fit for browsing a huge tree fast — point lookups and inserts
// keyed by a fixed-width key — also makes it a good fit for
// deduplicating one.
package contentindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
)

// Index is a content-addressed store mapping a hash of an artifact's
// bytes to the md_path of the first meta directory that artifact's
// bytes were seen under.
type Index struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*Index, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("contentindex: open %s: %w", dir, err)
	}
	return &Index{db: db}, nil
}

func (x *Index) Close() error { return x.db.Close() }

// HashReader computes the xxhash64 digest of everything r yields.
// Artifacts in a scan can be large; xxhash64 is fast enough to run
// over every extracted/unpacked child without the hashing step
// dominating the scan.
func HashReader(r io.Reader) (uint64, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, fmt.Errorf("contentindex: hash: %w", err)
	}
	return h.Sum64(), nil
}

func key(hash uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], hash)
	return b[:]
}

// Lookup returns the md_path already indexed under hash, if any.
func (x *Index) Lookup(hash uint64) (mdPath string, found bool, err error) {
	v, closer, err := x.db.Get(key(hash))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("contentindex: lookup: %w", err)
	}
	defer closer.Close()
	return string(v), true, nil
}

// Record indexes mdPath under hash unless something is already
// recorded there (first writer wins — the first time a given content
// hash is seen is the canonical, non-duplicate instance).
func (x *Index) Record(hash uint64, mdPath string) error {
	if _, found, err := x.Lookup(hash); err != nil {
		return err
	} else if found {
		return nil
	}
	if err := x.db.Set(key(hash), []byte(mdPath), pebble.Sync); err != nil {
		return fmt.Errorf("contentindex: record: %w", err)
	}
	return nil
}

// CheckAndRecord is the one call a worker needs: hash r's bytes, and
// report whether mdPath is a duplicate of something already indexed.
// If it is, the earlier md_path is returned as canonicalMD; if not,
// mdPath itself is recorded as the new canonical instance. Checking an
// mdPath that is already the indexed instance for its hash reports no
// duplicate.
func (x *Index) CheckAndRecord(r io.Reader, mdPath string) (duplicate bool, canonicalMD string, err error) {
	hash, err := HashReader(r)
	if err != nil {
		return false, "", err
	}
	existing, found, err := x.Lookup(hash)
	if err != nil {
		return false, "", err
	}
	if found {
		return existing != mdPath, existing, nil
	}
	if err := x.Record(hash, mdPath); err != nil {
		return false, "", err
	}
	return false, mdPath, nil
}
