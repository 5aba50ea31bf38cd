/*
Package store defines the persistence contract for the coin ledger.

PURPOSE:
  Everything the system persists lives in one flat collection of items
  addressed by a compound key (PartitionKey, SortKey). A partition holds
  everything belonging to one owner scope (a user, or the system scope),
  and the sort key carries a type-prefixed discriminator so that "all
  balance logs for a user" or "all pending rewards for a user" is a
  single prefix query.

KEY INTERFACES:
  ItemStore: put/get/query/scan/delete plus conditional writes and an
             atomic multi-item batch.

CONDITIONAL WRITES:
  PutNew fails if the key already exists; Update and DeleteExisting fail
  if it does not. Callers use these to turn races into detectable errors
  instead of silent overwrites.

ATOMIC BATCHES:
  WriteBatch applies a set of puts and deletes all-or-nothing. The ledger
  uses this so a balance write and its log entry can never be split by a
  crash.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - store.Memory: in-memory store for tests

SEE ALSO:
  - coin/keys.go: the sort-key discriminators layered on top
  - ledger/: the balance/log operations built on this interface
*/
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// =============================================================================
// KEYS AND ITEMS
// =============================================================================

// Key addresses a single item in the flat collection.
type Key struct {
	Partition string
	Sort      string
}

// Item is one stored record. Attrs is the JSON-encoded attribute set;
// the domain packages own its shape, the store treats it as opaque.
type Item struct {
	Key
	Attrs json.RawMessage
}

// NewItem marshals v into an Item at the given key.
func NewItem(k Key, v any) (Item, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Item{}, err
	}
	return Item{Key: k, Attrs: raw}, nil
}

// Decode unmarshals the item's attributes into v.
func (it Item) Decode(v any) error {
	return json.Unmarshal(it.Attrs, v)
}

// =============================================================================
// WRITE BATCH
// =============================================================================

// WriteOp is one element of an atomic batch: exactly one of Put or
// Delete is set.
type WriteOp struct {
	Put    *Item
	Delete *Key
}

func PutOp(it Item) WriteOp  { return WriteOp{Put: &it} }
func DeleteOp(k Key) WriteOp { return WriteOp{Delete: &k} }

// =============================================================================
// ITEM STORE
// =============================================================================

// ItemStore is the persistence interface for the flat item collection.
//
// Query and ScanPrefix return items ordered by sort key ascending.
// Get returns (nil, nil) when the key is absent; the conditional
// variants return the sentinel errors below instead.
type ItemStore interface {
	// Put writes an item unconditionally (upsert).
	Put(ctx context.Context, it Item) error

	// PutNew writes an item only if the key does not exist yet.
	// Returns ErrItemExists otherwise.
	PutNew(ctx context.Context, it Item) error

	// Update overwrites an existing item. Returns ErrItemNotFound if
	// the key is absent.
	Update(ctx context.Context, it Item) error

	// Get loads a single item, or (nil, nil) if absent.
	Get(ctx context.Context, k Key) (*Item, error)

	// Delete removes an item if present. Removing an absent key is not
	// an error.
	Delete(ctx context.Context, k Key) error

	// DeleteExisting removes an item, failing with ErrItemNotFound if
	// the key is absent.
	DeleteExisting(ctx context.Context, k Key) error

	// Query returns all items in one partition whose sort key starts
	// with sortPrefix. An empty prefix returns the whole partition.
	Query(ctx context.Context, partition, sortPrefix string) ([]Item, error)

	// ScanPrefix returns items across all partitions whose sort key
	// starts with sortPrefix.
	ScanPrefix(ctx context.Context, sortPrefix string) ([]Item, error)

	// WriteBatch applies all operations atomically. Either every put
	// and delete lands, or none do.
	WriteBatch(ctx context.Context, ops []WriteOp) error
}

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrItemExists is returned by PutNew when the key is already taken.
	ErrItemExists = errors.New("item already exists")

	// ErrItemNotFound is returned by the conditional update/delete
	// operations when the key is absent.
	ErrItemNotFound = errors.New("item not found")
)
