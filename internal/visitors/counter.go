package visitors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Counter records visits against a Store.
type Counter struct {
	store Store
}

func NewCounter(store Store) *Counter {
	return &Counter{store: store}
}

// Record counts one visit for visitorID, and one unique visitor if the id has
// not been seen before.
func (c *Counter) Record(ctx context.Context, visitorID string) error {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return errors.New("empty visitor id")
	}

	_, err := c.store.Get(ctx)
	switch {
	case errors.Is(err, ErrLedgerNotFound):
		err = c.store.Create(ctx, Ledger{
			TotalVisitors: 1,
			TotalVisits:   1,
			Visitors:      []string{visitorID},
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrLedgerExists) {
			return fmt.Errorf("create ledger: %w", err)
		}
		// Lost the creation race; count against the ledger the winner made.
	case err != nil:
		return fmt.Errorf("get ledger: %w", err)
	}

	if err := c.store.IncrementVisits(ctx); err != nil {
		return fmt.Errorf("increment visits: %w", err)
	}
	if _, err := c.store.AddVisitor(ctx, visitorID); err != nil {
		return fmt.Errorf("add visitor: %w", err)
	}
	return nil
}

// Snapshot returns the current ledger, or an empty one if nothing has been
// recorded yet.
func (c *Counter) Snapshot(ctx context.Context) (Ledger, error) {
	l, err := c.store.Get(ctx)
	if errors.Is(err, ErrLedgerNotFound) {
		return Ledger{Visitors: []string{}}, nil
	}
	return l, err
}
