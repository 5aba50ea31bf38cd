package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorebank/coinledger/store"
	"github.com/chorebank/coinledger/store/sqlite"
)

type payload struct {
	Name string `json:"name"`
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustItem(t *testing.T, partition, sort, name string) store.Item {
	t.Helper()
	it, err := store.NewItem(store.Key{Partition: partition, Sort: sort}, payload{Name: name})
	require.NoError(t, err)
	return it
}

func TestSQLite_RoundTrip(t *testing.T) {
	// GIVEN: A fresh database
	// WHEN: Writing and reading an item back
	// THEN: The attributes survive, an absent key reads as nil, nil

	s := newTestStore(t)
	ctx := context.Background()
	it := mustItem(t, "USER#1", "METADATA", "Maya")

	require.NoError(t, s.Put(ctx, it))

	got, err := s.Get(ctx, it.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	var p payload
	require.NoError(t, got.Decode(&p))
	assert.Equal(t, "Maya", p.Name)

	missing, err := s.Get(ctx, store.Key{Partition: "USER#1", Sort: "TODO#ghost"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_ConditionalWrites(t *testing.T) {
	// GIVEN: An existing item
	// WHEN: Using the conditional write operations
	// THEN: The same sentinels surface as from the memory store

	s := newTestStore(t)
	ctx := context.Background()
	it := mustItem(t, "USER#1", "METADATA", "Maya")

	require.NoError(t, s.PutNew(ctx, it))
	assert.ErrorIs(t, s.PutNew(ctx, it), store.ErrItemExists)

	missing := mustItem(t, "USER#1", "TODO#ghost", "x")
	assert.ErrorIs(t, s.Update(ctx, missing), store.ErrItemNotFound)
	assert.ErrorIs(t, s.DeleteExisting(ctx, missing.Key), store.ErrItemNotFound)

	require.NoError(t, s.Update(ctx, it))
	require.NoError(t, s.DeleteExisting(ctx, it.Key))
	assert.NoError(t, s.Delete(ctx, it.Key), "plain delete is idempotent")
}

func TestSQLite_PrefixQueries(t *testing.T) {
	// GIVEN: Items across partitions with mixed sort keys
	// WHEN: Querying by partition prefix and scanning by sort prefix
	// THEN: Range bounds include only true prefix matches, sorted ascending

	s := newTestStore(t)
	ctx := context.Background()

	for _, it := range []store.Item{
		mustItem(t, "USER#1", "BALANCELOG#2_b", "second"),
		mustItem(t, "USER#1", "BALANCELOG#1_a", "first"),
		mustItem(t, "USER#1", "BEHAVIOR#b1", "nearby prefix"),
		mustItem(t, "USER#2", "BALANCELOG#1_z", "other user"),
		mustItem(t, "USER#2", "METADATA", "Theo"),
	} {
		require.NoError(t, s.Put(ctx, it))
	}

	items, err := s.Query(ctx, "USER#1", "BALANCELOG#")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "BALANCELOG#1_a", items[0].Sort)
	assert.Equal(t, "BALANCELOG#2_b", items[1].Sort)

	logs, err := s.ScanPrefix(ctx, "BALANCELOG#")
	require.NoError(t, err)
	assert.Len(t, logs, 3, "scan crosses partitions")
}

func TestSQLite_WriteBatch_Atomic(t *testing.T) {
	// GIVEN: A balance item and a log entry
	// WHEN: Replacing the balance, appending a log, and deleting the
	//       old entry in one batch
	// THEN: All three writes land

	s := newTestStore(t)
	ctx := context.Background()

	balance := mustItem(t, "USER#1", "ACCOUNT#balance", "old")
	gone := mustItem(t, "USER#1", "BALANCELOG#1_a", "entry")
	require.NoError(t, s.Put(ctx, balance))
	require.NoError(t, s.Put(ctx, gone))

	require.NoError(t, s.WriteBatch(ctx, []store.WriteOp{
		store.PutOp(mustItem(t, "USER#1", "ACCOUNT#balance", "new")),
		store.PutOp(mustItem(t, "USER#1", "BALANCELOG#2_b", "entry")),
		store.DeleteOp(gone.Key),
	}))

	got, err := s.Get(ctx, balance.Key)
	require.NoError(t, err)
	var p payload
	require.NoError(t, got.Decode(&p))
	assert.Equal(t, "new", p.Name)

	items, err := s.Query(ctx, "USER#1", "BALANCELOG#")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "BALANCELOG#2_b", items[0].Sort)
}
