/*
keys.go - Item-collection addressing scheme

PURPOSE:
  Every record lives in the flat item collection under a compound key.
  The partition is the owner scope; the sort key carries a type-prefixed
  discriminator so per-user lookups ("all pending rewards", "all balance
  logs") are single prefix queries.

LAYOUT:
  USER#<userId>:
    METADATA                               user record + settings
    ACCOUNT#balance                        current balance
    BALANCELOG#<logId>                     one entry per balance change
    PENDING#<pendingId>                    unsettled reward
    ACTIVITY#<activityId>                  standalone activity
    BEHAVIOR#<behaviorId>                  behavior (activity group)
    BEHAVIOR#<behaviorId>#ACTIVITY#<id>    behavior-grouped activity
    TODO#<todoId>                          todo
    ENTERTAINMENT#<entertainmentId>        screen-time catalog entry

  SYSTEM#resets:
    RESETRUN#<runId>                       settlement run audit record

  The exact prefix strings are an implementation detail of this package;
  nothing outside it builds sort keys by hand.
*/
package coin

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chorebank/coinledger/store"
)

const (
	userPartitionPrefix = "USER#"
	systemResetsPart    = "SYSTEM#resets"

	SortMetadata       = "METADATA"
	SortAccountBalance = "ACCOUNT#balance"

	PrefixBalanceLog    = "BALANCELOG#"
	PrefixPending       = "PENDING#"
	PrefixActivity      = "ACTIVITY#"
	PrefixBehavior      = "BEHAVIOR#"
	PrefixTodo          = "TODO#"
	PrefixEntertainment = "ENTERTAINMENT#"
	PrefixResetRun      = "RESETRUN#"

	activitySegment = "#ACTIVITY#"
)

// UserPartition returns the partition key for a user's records.
func UserPartition(userID string) string {
	return userPartitionPrefix + userID
}

// UserIDFromPartition extracts the user id from a USER# partition key.
func UserIDFromPartition(partition string) string {
	return strings.TrimPrefix(partition, userPartitionPrefix)
}

func MetadataKey(userID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: SortMetadata}
}

func BalanceKey(userID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: SortAccountBalance}
}

func BalanceLogKey(userID, logID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: PrefixBalanceLog + logID}
}

func PendingKey(userID, pendingID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: PrefixPending + pendingID}
}

func StandaloneActivityKey(userID, activityID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: PrefixActivity + activityID}
}

func BehaviorKey(userID, behaviorID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: PrefixBehavior + behaviorID}
}

func BehaviorActivityKey(userID, behaviorID, activityID string) store.Key {
	return store.Key{
		Partition: UserPartition(userID),
		Sort:      PrefixBehavior + behaviorID + activitySegment + activityID,
	}
}

func TodoKey(userID, todoID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: PrefixTodo + todoID}
}

func EntertainmentKey(userID, entertainmentID string) store.Key {
	return store.Key{Partition: UserPartition(userID), Sort: PrefixEntertainment + entertainmentID}
}

func ResetRunKey(runID string) store.Key {
	return store.Key{Partition: systemResetsPart, Sort: PrefixResetRun + runID}
}

// IsActivitySort reports whether a sort key addresses an activity,
// standalone or behavior-grouped. A bare BEHAVIOR#<id> key is the
// behavior record itself, not an activity.
func IsActivitySort(sort string) bool {
	return strings.HasPrefix(sort, PrefixActivity) ||
		(strings.HasPrefix(sort, PrefixBehavior) && strings.Contains(sort, activitySegment))
}

// =============================================================================
// ID GENERATION
// =============================================================================

// NewID returns a fresh identifier for activities, todos, behaviors
// and pending rewards.
func NewID() string {
	return uuid.NewString()
}

// NewLogID returns a time-ordered unique token for balance log entries.
// The millisecond prefix keeps lexical order aligned with creation
// order; the uuid suffix breaks same-millisecond ties.
func NewLogID(now time.Time) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}
