package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"aim-chat/conversation-core/internal/securestore"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const lockStripes = 256

const (
	metaSaltKey  = "meta/seal_salt"
	metaCheckKey = "meta/seal_check"
	sealCheck    = "conversation-core"
)

var ErrStoreClosed = errors.New("document store is closed")

type Options struct {
	// InMemory keeps all data in a pebble in-memory filesystem.
	InMemory bool
	// Secret enables per-value encryption at rest when non-empty.
	Secret string
}

// DocumentStore is a JSON document store on top of pebble. Every document is
// addressed by a string key; secondary indexes are plain keys with empty values.
type DocumentStore struct {
	db     *pebble.DB
	sealer *securestore.Sealer
	locks  [lockStripes]sync.Mutex
}

func Open(path string, opts Options) (*DocumentStore, error) {
	pebbleOpts := &pebble.Options{}
	if opts.InMemory {
		pebbleOpts.FS = vfs.NewMem()
		path = ""
	} else if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	s := &DocumentStore{db: db}
	if strings.TrimSpace(opts.Secret) != "" {
		if err := s.initSealer(opts.Secret); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func OpenInMemory() (*DocumentStore, error) {
	return Open("", Options{InMemory: true})
}

func (s *DocumentStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *DocumentStore) Encrypted() bool {
	return s.sealer != nil
}

// initSealer loads or creates the salt and verifies the secret against a
// sealed check value written on first use.
func (s *DocumentStore) initSealer(secret string) error {
	salt, found, err := s.getPlain(metaSaltKey)
	if err != nil {
		return err
	}
	if !found {
		if salt, err = securestore.NewSalt(); err != nil {
			return err
		}
		if err := s.db.Set([]byte(metaSaltKey), salt, pebble.Sync); err != nil {
			return err
		}
	}
	sealer, err := securestore.NewSealer(secret, salt)
	if err != nil {
		return err
	}
	check, found, err := s.getPlain(metaCheckKey)
	if err != nil {
		return err
	}
	if found {
		plain, err := sealer.Open(check)
		if err != nil {
			return err
		}
		if string(plain) != sealCheck {
			return securestore.ErrAuthFailed
		}
	} else {
		sealed, err := sealer.Seal([]byte(sealCheck))
		if err != nil {
			return err
		}
		if err := s.db.Set([]byte(metaCheckKey), sealed, pebble.Sync); err != nil {
			return err
		}
	}
	s.sealer = sealer
	return nil
}

func (s *DocumentStore) getPlain(key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, ErrStoreClosed
	}
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), val...)
	_ = closer.Close()
	return out, true, nil
}

func (s *DocumentStore) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s.sealer == nil {
		return raw, nil
	}
	return s.sealer.Seal(raw)
}

func (s *DocumentStore) decode(raw []byte, out any) error {
	if s.sealer != nil {
		plain, err := s.sealer.Open(raw)
		if err != nil {
			return err
		}
		raw = plain
	}
	return json.Unmarshal(raw, out)
}

// Get decodes the document at key into out.
func (s *DocumentStore) Get(key string, out any) (bool, error) {
	raw, found, err := s.getPlain(key)
	if err != nil || !found {
		return false, err
	}
	if err := s.decode(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *DocumentStore) Has(key string) (bool, error) {
	_, found, err := s.getPlain(key)
	return found, err
}

func (s *DocumentStore) Put(key string, v any) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	raw, err := s.encode(v)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(key), raw, pebble.Sync)
}

func (s *DocumentStore) Delete(key string) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Delete([]byte(key), pebble.Sync)
}

// Batch collects writes that commit atomically.
type Batch struct {
	store *DocumentStore
	b     *pebble.Batch
}

func (b *Batch) Put(key string, v any) error {
	raw, err := b.store.encode(v)
	if err != nil {
		return err
	}
	return b.b.Set([]byte(key), raw, nil)
}

// PutIndex writes an index entry with no payload.
func (b *Batch) PutIndex(key string) error {
	return b.b.Set([]byte(key), nil, nil)
}

func (b *Batch) Delete(key string) error {
	return b.b.Delete([]byte(key), nil)
}

// Apply runs fn against a fresh batch and commits it when fn succeeds.
func (s *DocumentStore) Apply(fn func(b *Batch) error) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := fn(&Batch{store: s, b: batch}); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// ScanKeys calls fn for every key under prefix; fn returns false to stop.
func (s *DocumentStore) ScanKeys(prefix string, reverse bool, fn func(key string) bool) error {
	return s.scan(prefix, reverse, func(key string, _ []byte) (bool, error) {
		return fn(key), nil
	})
}

func (s *DocumentStore) scan(prefix string, reverse bool, fn func(key string, raw []byte) (bool, error)) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	valid := iter.First
	step := iter.Next
	if reverse {
		valid = iter.Last
		step = iter.Prev
	}
	for ok := valid(); ok; ok = step() {
		key := string(iter.Key())
		cont, err := fn(key, append([]byte(nil), iter.Value()...))
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return iter.Error()
}

// ScanDocs decodes up to limit documents under prefix. limit <= 0 means no limit.
func ScanDocs[T any](s *DocumentStore, prefix string, reverse bool, limit int) ([]T, error) {
	out := make([]T, 0)
	err := s.scan(prefix, reverse, func(key string, raw []byte) (bool, error) {
		var doc T
		if err := s.decode(raw, &doc); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, doc)
		return limit <= 0 || len(out) < limit, nil
	})
	return out, err
}

// Lock serializes callers on the stripe owning key and returns the unlock func.
func (s *DocumentStore) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// UpdateDoc runs a read-modify-write on one document under its key lock.
// fn receives found=false and a zero doc when the key is absent; returning
// write=false skips the write.
func UpdateDoc[T any](s *DocumentStore, key string, fn func(doc *T, found bool) (bool, error)) (T, bool, error) {
	unlock := s.Lock(key)
	defer unlock()

	var doc T
	found, err := s.Get(key, &doc)
	if err != nil {
		return doc, false, err
	}
	write, err := fn(&doc, found)
	if err != nil {
		return doc, found, err
	}
	if write {
		if err := s.Put(key, doc); err != nil {
			return doc, found, err
		}
	}
	return doc, found, nil
}

func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
