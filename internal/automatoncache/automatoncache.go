// Package automatoncache memoizes a compiled automaton's serialized
// form in a BadgerDB store keyed by a SHA-256 fingerprint of the
// pattern set, the same key/value store the blockchain service uses
// for its block index.
package automatoncache

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// Cache persists serialized automatons so a process restart with an
// unchanged pattern set skips a full rebuild.
type Cache struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger store at dir.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("automatoncache: open %s: %w", dir, err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying Badger store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Fingerprint returns a deterministic SHA-256 digest of a pattern set:
// same keys and values in any order hash identically.
func Fingerprint(keys []string, values []string) [32]byte {
	pairs := make([]string, len(keys))
	for i := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		pairs[i] = keys[i] + "\x00" + v
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func cacheKey(fp [32]byte) []byte {
	key := make([]byte, len("automaton:")+len(fp))
	n := copy(key, "automaton:")
	copy(key[n:], fp[:])
	return key
}

// Get returns the serialized automaton bytes stored under fp, or
// found == false if nothing is cached for that fingerprint.
func (c *Cache) Get(fp [32]byte) (data []byte, found bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(fp))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	return data, found, err
}

// Put stores the serialized automaton bytes under fp, overwriting
// any previous entry.
func (c *Cache) Put(fp [32]byte, data []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(fp), data)
	})
}
