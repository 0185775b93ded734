// Package store keeps the app's document collections. Each collection is one
// JSON array stored under its own key in the key-value store; lookups are
// linear scans over the decoded array.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"schoolhub/internal/apperr"
	"schoolhub/internal/db"
)

type Name string

const (
	Users  Name = "users"
	Posts  Name = "posts"
	Clubs  Name = "clubs"
	Events Name = "events"
	Chats  Name = "chats"
)

// All lists every collection in lock order.
var All = []Name{Chats, Clubs, Events, Posts, Users}

var emptyArray = []byte("[]")

type Store struct {
	kv    *db.KVStore
	locks map[Name]*sync.Mutex
}

func New(kv *db.KVStore) *Store {
	locks := make(map[Name]*sync.Mutex, len(All))
	for _, name := range All {
		locks[name] = &sync.Mutex{}
	}
	return &Store{kv: kv, locks: locks}
}

func (s *Store) KV() *db.KVStore {
	return s.kv
}

// EnsureExists creates the collection as an empty array if it is absent and
// resets it when the stored value is not a JSON array. Safe to call repeatedly.
func (s *Store) EnsureExists(ctx context.Context, name Name) error {
	mu, err := s.lock(name)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	raw, found, err := s.kv.GetRaw(ctx, string(name))
	if err != nil {
		return err
	}
	if found && isArray(raw) {
		return nil
	}
	if found {
		slog.Warn("collection is not a JSON array, resetting", "component", "store", "collection", name)
	}
	return s.kv.SetRaw(ctx, string(name), emptyArray)
}

// ReadAll decodes the whole collection into dst, which must point to a slice.
// A missing or corrupted collection reads as empty.
func (s *Store) ReadAll(ctx context.Context, name Name, dst any) error {
	raw, found, err := s.kv.GetRaw(ctx, string(name))
	if err != nil {
		return err
	}
	return decodeCollection(name, raw, found, dst, true)
}

// WriteAll replaces the whole collection with docs.
func (s *Store) WriteAll(ctx context.Context, name Name, docs any) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Stage(name, docs)
	}, name)
}

// Update runs fn as one unit of work over the named collections. The
// collections are locked for the duration, and every collection staged by fn
// is written in a single transaction when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error, names ...Name) error {
	ordered := slices.Clone(names)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	for _, name := range ordered {
		mu, err := s.lock(name)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
	}

	return s.kv.WithTx(ctx, func(kvTx *db.KVTx) error {
		tx := &Tx{ctx: ctx, kv: kvTx, allowed: ordered, staged: make(map[Name][]byte)}
		if err := fn(tx); err != nil {
			return err
		}
		return tx.flush()
	})
}

func (s *Store) lock(name Name) (*sync.Mutex, error) {
	mu, ok := s.locks[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return mu, nil
}

// Tx is a unit of work handed to Update's callback.
type Tx struct {
	ctx     context.Context
	kv      *db.KVTx
	allowed []Name
	staged  map[Name][]byte
}

// Load decodes the collection into dst. Collections staged earlier in the
// same unit of work read back their staged contents. Unlike ReadAll, an
// unreadable collection is an error here, so a unit of work never overwrites
// data it could not decode.
func (tx *Tx) Load(name Name, dst any) error {
	if err := tx.check(name); err != nil {
		return err
	}
	if raw, ok := tx.staged[name]; ok {
		return decodeCollection(name, raw, true, dst, false)
	}
	raw, found, err := tx.kv.GetRaw(tx.ctx, string(name))
	if err != nil {
		return err
	}
	return decodeCollection(name, raw, found, dst, false)
}

// Stage records docs as the new contents of the collection. Nothing is
// written until the unit of work commits.
func (tx *Tx) Stage(name Name, docs any) error {
	if err := tx.check(name); err != nil {
		return err
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return apperr.Storage(fmt.Sprintf("encoding %s", name), err)
	}
	if bytes.Equal(data, []byte("null")) {
		data = emptyArray
	}
	tx.staged[name] = data
	return nil
}

// GetKey reads a non-collection key inside the unit of work.
func (tx *Tx) GetKey(key string, dst any) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	return tx.kv.Get(tx.ctx, key, dst)
}

// SetKey writes a non-collection key in the same transaction, so bookkeeping
// such as the session or the schema version commits together with the
// documents.
func (tx *Tx) SetKey(key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return tx.kv.Set(tx.ctx, key, value)
}

func (tx *Tx) RemoveKey(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return tx.kv.Remove(tx.ctx, key)
}

func checkKey(key string) error {
	if slices.Contains(All, Name(key)) {
		return fmt.Errorf("key %q is a collection, use Load or Stage", key)
	}
	return nil
}

func (tx *Tx) check(name Name) error {
	if !slices.Contains(tx.allowed, name) {
		return fmt.Errorf("collection %q is not part of this unit of work", name)
	}
	return nil
}

func (tx *Tx) flush() error {
	for _, name := range tx.allowed {
		data, ok := tx.staged[name]
		if !ok {
			continue
		}
		if err := tx.kv.SetRaw(tx.ctx, string(name), data); err != nil {
			return err
		}
	}
	return nil
}

func decodeCollection(name Name, raw []byte, found bool, dst any, lenient bool) error {
	if !found {
		raw = emptyArray
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// Any decode failure, including a field that does not parse such as
		// a malformed time, means the stored collection is corrupt.
		if lenient {
			slog.Warn("collection is unreadable, treating as empty", "component", "store", "collection", name, "error", err)
			return json.Unmarshal(emptyArray, dst)
		}
		return apperr.Storage(fmt.Sprintf("decoding %s", name), err)
	}
	return nil
}

func isArray(raw []byte) bool {
	var docs []json.RawMessage
	return json.Unmarshal(raw, &docs) == nil && docs != nil
}
