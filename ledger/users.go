package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/store"
)

// =============================================================================
// USER ACCOUNTS
// =============================================================================
//
// The user record (METADATA) lives next to the balance in the same
// partition, so the ledger owns both halves of the account.

// CreateUser registers a new user with the given settings. The balance
// record is not created here; the first SetBalance writes it, and
// reads before that see zero.
func (l *Ledger) CreateUser(ctx context.Context, name string, settings coin.Settings) (coin.User, error) {
	if strings.TrimSpace(name) == "" {
		return coin.User{}, &coin.ValidationError{Field: "name", Message: "is required"}
	}
	if settings.CompleteAward.IsNegative() {
		return coin.User{}, &coin.ValidationError{Field: "completeAward", Message: "must not be negative"}
	}
	if settings.UncompleteFine.IsNegative() {
		return coin.User{}, &coin.ValidationError{Field: "uncompleteFine", Message: "must not be negative"}
	}

	u := coin.User{
		UserID:    coin.NewID(),
		Name:      strings.TrimSpace(name),
		CreatedAt: l.now(),
		Settings:  settings,
	}
	it, err := store.NewItem(coin.MetadataKey(u.UserID), u)
	if err != nil {
		return coin.User{}, err
	}
	if err := l.Store.PutNew(ctx, it); err != nil {
		return coin.User{}, coin.WrapStore("create user", err)
	}
	return u, nil
}

// GetUser returns the user record.
func (l *Ledger) GetUser(ctx context.Context, userID string) (coin.User, error) {
	it, err := l.Store.Get(ctx, coin.MetadataKey(userID))
	if err != nil {
		return coin.User{}, coin.WrapStore("get user", err)
	}
	if it == nil {
		return coin.User{}, fmt.Errorf("user %s: %w", userID, coin.ErrUserNotFound)
	}
	var u coin.User
	if err := it.Decode(&u); err != nil {
		return coin.User{}, coin.WrapStore("decode user", err)
	}
	return u, nil
}

// ListUsers returns every registered user, found by scanning the
// METADATA sort key across partitions.
func (l *Ledger) ListUsers(ctx context.Context) ([]coin.User, error) {
	items, err := l.Store.ScanPrefix(ctx, coin.SortMetadata)
	if err != nil {
		return nil, coin.WrapStore("list users", err)
	}

	users := make([]coin.User, 0, len(items))
	for _, it := range items {
		var u coin.User
		if err := it.Decode(&u); err != nil {
			return nil, coin.WrapStore("decode user", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// UpdateSettings replaces the user's reset settings.
func (l *Ledger) UpdateSettings(ctx context.Context, userID string, settings coin.Settings) (coin.User, error) {
	if settings.CompleteAward.IsNegative() {
		return coin.User{}, &coin.ValidationError{Field: "completeAward", Message: "must not be negative"}
	}
	if settings.UncompleteFine.IsNegative() {
		return coin.User{}, &coin.ValidationError{Field: "uncompleteFine", Message: "must not be negative"}
	}

	u, err := l.GetUser(ctx, userID)
	if err != nil {
		return coin.User{}, err
	}
	u.Settings = settings

	it, err := store.NewItem(coin.MetadataKey(userID), u)
	if err != nil {
		return coin.User{}, err
	}
	if err := l.Store.Update(ctx, it); err != nil {
		return coin.User{}, coin.WrapStore("update settings", err)
	}
	return u, nil
}
