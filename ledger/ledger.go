/*
Package ledger implements the balance core: the stored balance, the
append-only balance log, and the rollback operation.

PURPOSE:
  Every coin a user gains or loses flows through SetBalance (or its
  read-modify-write wrapper Adjust). Each mutation writes the new
  balance and exactly one log entry in a single atomic batch, so the
  log can never disagree with the balance because of a crash between
  the two writes.

CRITICAL INVARIANTS:
  1. SetBalance is the ONLY balance mutator; higher layers never write
     the account record directly.
  2. One log entry per mutation, with balanceAfter - balanceBefore
     equal to the applied delta.
  3. Balance may go negative. The ledger enforces no floor.

PER-USER SERIALIZATION:
  GetBalance-then-SetBalance is a read-modify-write. Two concurrent
  settlements for the same user would race and lose an update, so every
  mutating operation holds a per-user mutex for its full read-modify-
  write cycle. Operations on different users do not contend.

LEGACY ROWS:
  Old log rows carry only a signed amount; current rows carry the
  before/after pair. Logs() normalizes both forms to LogEntry at the
  read boundary - nothing downstream ever sees a half-filled row.

ROLLBACK:
  BackupTo restores the balance to a historical log point and deletes
  every entry after it, atomically, leaving one new entry documenting
  the rollback itself.

SEE ALSO:
  - coin/records.go: LogRecord vs LogEntry
  - rewards/: the settlement engine built on Adjust
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/store"
)

// Change reports a single balance mutation.
type Change struct {
	LogID  string
	Before coin.Amount
	After  coin.Amount
}

// BackupResult reports a rollback.
type BackupResult struct {
	DeletedCount int
	Before       coin.Amount
	After        coin.Amount
}

// Ledger owns balance reads and writes for all users.
type Ledger struct {
	Store store.ItemStore

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st store.ItemStore) *Ledger {
	return &Ledger{Store: st, locks: make(map[string]*sync.Mutex)}
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

// userLock returns the serialization mutex for one user, creating it
// on first use.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[userID] = lk
	}
	return lk
}

// =============================================================================
// BALANCE
// =============================================================================

// GetBalance returns the stored balance, zero if none was ever written.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (coin.Amount, error) {
	return l.readBalance(ctx, userID)
}

func (l *Ledger) readBalance(ctx context.Context, userID string) (coin.Amount, error) {
	it, err := l.Store.Get(ctx, coin.BalanceKey(userID))
	if err != nil {
		return coin.Amount{}, coin.WrapStore("get balance", err)
	}
	if it == nil {
		return coin.Amount{}, nil
	}
	var acct coin.Account
	if err := it.Decode(&acct); err != nil {
		return coin.Amount{}, coin.WrapStore("decode balance", err)
	}
	return acct.Balance, nil
}

// SetBalance overwrites the stored balance and appends the log entry
// documenting the change, atomically.
func (l *Ledger) SetBalance(ctx context.Context, userID string, newBalance coin.Amount, reason string) (Change, error) {
	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	before, err := l.readBalance(ctx, userID)
	if err != nil {
		return Change{}, err
	}
	return l.writeBalanceLocked(ctx, userID, before, newBalance, reason)
}

// Adjust applies a signed delta under the user lock, closing the
// read-modify-write race a separate GetBalance + SetBalance would have.
func (l *Ledger) Adjust(ctx context.Context, userID string, delta coin.Amount, reason string) (Change, error) {
	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	before, err := l.readBalance(ctx, userID)
	if err != nil {
		return Change{}, err
	}
	return l.writeBalanceLocked(ctx, userID, before, before.Add(delta), reason)
}

// writeBalanceLocked is the single mutation path: balance item plus log
// item in one batch. Callers hold the user lock.
func (l *Ledger) writeBalanceLocked(ctx context.Context, userID string, before, after coin.Amount, reason string) (Change, error) {
	now := l.now()
	logID := coin.NewLogID(now)

	balanceItem, err := store.NewItem(coin.BalanceKey(userID), coin.Account{Balance: after})
	if err != nil {
		return Change{}, fmt.Errorf("encode balance: %w", err)
	}

	logItem, err := store.NewItem(coin.BalanceLogKey(userID, logID), coin.LogRecord{
		LogID:         logID,
		UserID:        userID,
		BalanceBefore: &before,
		BalanceAfter:  &after,
		Amount:        amountPtr(after.Sub(before)),
		Reason:        reason,
		Timestamp:     now,
	})
	if err != nil {
		return Change{}, fmt.Errorf("encode log entry: %w", err)
	}

	if err := l.Store.WriteBatch(ctx, []store.WriteOp{
		store.PutOp(balanceItem),
		store.PutOp(logItem),
	}); err != nil {
		return Change{}, coin.WrapStore("write balance", err)
	}

	return Change{LogID: logID, Before: before, After: after}, nil
}

func amountPtr(a coin.Amount) *coin.Amount { return &a }

// =============================================================================
// LOG READS
// =============================================================================

// Logs returns the user's balance history in timestamp order, oldest
// first, with legacy amount-only rows normalized to the before/after
// form by chaining the running balance.
func (l *Ledger) Logs(ctx context.Context, userID string) ([]coin.LogEntry, error) {
	records, _, err := l.loadLogRecords(ctx, userID)
	if err != nil {
		return nil, err
	}
	return normalize(records), nil
}

func (l *Ledger) loadLogRecords(ctx context.Context, userID string) ([]coin.LogRecord, []store.Key, error) {
	items, err := l.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixBalanceLog)
	if err != nil {
		return nil, nil, coin.WrapStore("query balance logs", err)
	}

	records := make([]coin.LogRecord, 0, len(items))
	keys := make([]store.Key, 0, len(items))
	for _, it := range items {
		var rec coin.LogRecord
		if err := it.Decode(&rec); err != nil {
			return nil, nil, coin.WrapStore("decode balance log", err)
		}
		records = append(records, rec)
		keys = append(keys, it.Key)
	}

	// Chronological order; the log id breaks same-timestamp ties.
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].LogID < records[j].LogID
	})
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].Sort < keys[j].Sort })

	return records, keys, nil
}

// normalize resolves the two stored forms into complete entries. Rows
// with a before/after pair are taken as-is; amount-only rows chain off
// the running balance of the preceding entry.
func normalize(records []coin.LogRecord) []coin.LogEntry {
	entries := make([]coin.LogEntry, 0, len(records))
	var running coin.Amount

	for _, rec := range records {
		entry := coin.LogEntry{
			LogID:     rec.LogID,
			UserID:    rec.UserID,
			Reason:    rec.Reason,
			Timestamp: rec.Timestamp,
		}
		switch {
		case rec.BalanceBefore != nil && rec.BalanceAfter != nil:
			entry.BalanceBefore = *rec.BalanceBefore
			entry.BalanceAfter = *rec.BalanceAfter
			entry.Amount = entry.BalanceAfter.Sub(entry.BalanceBefore)
		case rec.Amount != nil:
			entry.BalanceBefore = running
			entry.BalanceAfter = running.Add(*rec.Amount)
			entry.Amount = *rec.Amount
		default:
			entry.BalanceBefore = running
			entry.BalanceAfter = running
		}
		running = entry.BalanceAfter
		entries = append(entries, entry)
	}
	return entries
}

// PurgeLogs deletes every balance log entry for the user. Failures are
// counted, not fatal; the returned count is entries actually removed.
func (l *Ledger) PurgeLogs(ctx context.Context, userID string) (deleted, failed int, err error) {
	_, keys, err := l.loadLogRecords(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	for _, k := range keys {
		if err := l.Store.Delete(ctx, k); err != nil {
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed, nil
}

// =============================================================================
// ROLLBACK
// =============================================================================

// BackupTo restores the balance to the state at the given log entry:
// every entry strictly after it is deleted, the balance is overwritten
// to targetBalance, and one new entry documents the rollback. The
// deletes, the balance write and the new entry land in one batch.
func (l *Ledger) BackupTo(ctx context.Context, userID, logID string, targetBalance coin.Amount) (BackupResult, error) {
	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	records, _, err := l.loadLogRecords(ctx, userID)
	if err != nil {
		return BackupResult{}, err
	}

	target := -1
	for i, rec := range records {
		if rec.LogID == logID {
			target = i
			break
		}
	}
	if target < 0 {
		return BackupResult{}, fmt.Errorf("log %s: %w", logID, coin.ErrLogNotFound)
	}

	before, err := l.readBalance(ctx, userID)
	if err != nil {
		return BackupResult{}, err
	}

	ops := make([]store.WriteOp, 0, len(records)-target+1)
	for _, rec := range records[target+1:] {
		ops = append(ops, store.DeleteOp(coin.BalanceLogKey(userID, rec.LogID)))
	}
	deletedCount := len(ops)

	balanceItem, err := store.NewItem(coin.BalanceKey(userID), coin.Account{Balance: targetBalance})
	if err != nil {
		return BackupResult{}, fmt.Errorf("encode balance: %w", err)
	}
	ops = append(ops, store.PutOp(balanceItem))

	now := l.now()
	rollbackID := coin.NewLogID(now)
	reason := fmt.Sprintf("Backup operation: restored balance to $%s and removed %d logs",
		targetBalance.String(), deletedCount)
	logItem, err := store.NewItem(coin.BalanceLogKey(userID, rollbackID), coin.LogRecord{
		LogID:         rollbackID,
		UserID:        userID,
		BalanceBefore: &before,
		BalanceAfter:  &targetBalance,
		Amount:        amountPtr(targetBalance.Sub(before)),
		Reason:        reason,
		Timestamp:     now,
	})
	if err != nil {
		return BackupResult{}, fmt.Errorf("encode rollback entry: %w", err)
	}
	ops = append(ops, store.PutOp(logItem))

	if err := l.Store.WriteBatch(ctx, ops); err != nil {
		return BackupResult{}, coin.WrapStore("rollback", err)
	}

	return BackupResult{DeletedCount: deletedCount, Before: before, After: targetBalance}, nil
}
