package chores

import (
	"context"
	"fmt"

	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/store"
)

// =============================================================================
// ENTERTAINMENT CATALOG
// =============================================================================
//
// Each user carries their own copy of the screen-time catalog so a
// parent can tune rates and visibility per child. A user with no
// catalog is seeded with the defaults on first list.

func defaultEntertainments(userID string) []coin.Entertainment {
	options := []struct {
		id, name string
	}{
		{"iphone", "iPhone Time"},
		{"ipad", "iPad Time"},
		{"gaming", "Gaming Time"},
		{"tv", "TV Time"},
	}

	out := make([]coin.Entertainment, 0, len(options))
	for _, o := range options {
		out = append(out, coin.Entertainment{
			EntertainmentID: o.id,
			UserID:          userID,
			Name:            o.name,
			Image:           fmt.Sprintf("/thumb/%s.png", o.id),
			MinutesPerCoin:  5,
			CostPerCoin:     coin.NewAmount(1),
			Visible:         true,
			Description:     fmt.Sprintf("Each coin adds 5 minutes of %s.", o.name),
		})
	}
	return out
}

// ListEntertainments returns the user's catalog, seeding the defaults
// when the user has none yet.
func (s *Service) ListEntertainments(ctx context.Context, userID string) ([]coin.Entertainment, error) {
	items, err := s.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixEntertainment)
	if err != nil {
		return nil, coin.WrapStore("list entertainments", err)
	}
	if len(items) == 0 {
		return s.seedEntertainments(ctx, userID)
	}

	var out []coin.Entertainment
	for _, it := range items {
		var e coin.Entertainment
		if err := it.Decode(&e); err != nil {
			return nil, coin.WrapStore("decode entertainment", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// InitializeEntertainments writes the default catalog for the user,
// overwriting any tuned entries.
func (s *Service) InitializeEntertainments(ctx context.Context, userID string) ([]coin.Entertainment, error) {
	return s.seedEntertainments(ctx, userID)
}

// InitializeResult is one user's outcome of a bulk catalog pass.
type InitializeResult struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "created" or "exists"
	Count  int    `json:"count"`
}

// InitializeAllEntertainments seeds the default catalog for every user
// that has none, leaving existing catalogs untouched.
func (s *Service) InitializeAllEntertainments(ctx context.Context) ([]InitializeResult, error) {
	users, err := s.Store.ScanPrefix(ctx, coin.SortMetadata)
	if err != nil {
		return nil, coin.WrapStore("scan users", err)
	}

	var results []InitializeResult
	for _, it := range users {
		userID := coin.UserIDFromPartition(it.Partition)
		existing, err := s.Store.Query(ctx, it.Partition, coin.PrefixEntertainment)
		if err != nil {
			return nil, coin.WrapStore("list entertainments", err)
		}
		if len(existing) > 0 {
			results = append(results, InitializeResult{UserID: userID, Status: "exists", Count: len(existing)})
			continue
		}
		seeded, err := s.seedEntertainments(ctx, userID)
		if err != nil {
			return nil, err
		}
		results = append(results, InitializeResult{UserID: userID, Status: "created", Count: len(seeded)})
	}
	return results, nil
}

func (s *Service) GetEntertainment(ctx context.Context, userID, entertainmentID string) (coin.Entertainment, error) {
	it, err := s.Store.Get(ctx, coin.EntertainmentKey(userID, entertainmentID))
	if err != nil {
		return coin.Entertainment{}, coin.WrapStore("get entertainment", err)
	}
	if it == nil {
		return coin.Entertainment{}, fmt.Errorf("entertainment %s: %w", entertainmentID, coin.ErrEntertainmentNotFound)
	}
	var e coin.Entertainment
	if err := it.Decode(&e); err != nil {
		return coin.Entertainment{}, coin.WrapStore("decode entertainment", err)
	}
	return e, nil
}

// SaveEntertainment overwrites a catalog entry, last write wins.
// The entry must already exist; new options come from the seeders.
func (s *Service) SaveEntertainment(ctx context.Context, userID string, e coin.Entertainment) error {
	if e.MinutesPerCoin < 0 {
		return &coin.ValidationError{Field: "minutesPerCoin", Message: "must not be negative"}
	}
	if e.CostPerCoin.IsNegative() {
		return &coin.ValidationError{Field: "costPerCoin", Message: "must not be negative"}
	}
	if _, err := s.GetEntertainment(ctx, userID, e.EntertainmentID); err != nil {
		return err
	}
	it, err := store.NewItem(coin.EntertainmentKey(userID, e.EntertainmentID), e)
	if err != nil {
		return err
	}
	if err := s.Store.Update(ctx, it); err != nil {
		return coin.WrapStore("save entertainment", err)
	}
	return nil
}

// seedEntertainments writes the default catalog in one batch.
func (s *Service) seedEntertainments(ctx context.Context, userID string) ([]coin.Entertainment, error) {
	defaults := defaultEntertainments(userID)
	ops := make([]store.WriteOp, 0, len(defaults))
	for _, e := range defaults {
		it, err := store.NewItem(coin.EntertainmentKey(userID, e.EntertainmentID), e)
		if err != nil {
			return nil, err
		}
		ops = append(ops, store.PutOp(it))
	}
	if err := s.Store.WriteBatch(ctx, ops); err != nil {
		return nil, coin.WrapStore("seed entertainments", err)
	}
	return defaults, nil
}
