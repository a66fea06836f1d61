// Package visitors counts landing-page visits and unique visitors against a
// single shared ledger.
package visitors

import (
	"context"
	"errors"
)

var (
	// ErrLedgerNotFound signals that no visit has ever been recorded. It is a
	// control-flow signal for the first-visit path, not a failure.
	ErrLedgerNotFound = errors.New("visitor ledger not found")

	// ErrLedgerExists is returned by Create when another caller created the
	// ledger first.
	ErrLedgerExists = errors.New("visitor ledger already exists")
)

// Ledger is the singleton tally of visits and distinct visitors.
type Ledger struct {
	TotalVisitors int64    `json:"totalVisitors"`
	TotalVisits   int64    `json:"totalVisits"`
	Visitors      []string `json:"visitors"`
}

// Has reports whether id has already been counted.
func (l Ledger) Has(id string) bool {
	for _, v := range l.Visitors {
		if v == id {
			return true
		}
	}
	return false
}

// Store persists the ledger. IncrementVisits and AddVisitor must be atomic
// with respect to concurrent callers.
type Store interface {
	Get(ctx context.Context) (Ledger, error)
	Create(ctx context.Context, l Ledger) error
	IncrementVisits(ctx context.Context) error
	// AddVisitor inserts id into the visitor set and bumps TotalVisitors only
	// when the insert added a new member.
	AddVisitor(ctx context.Context, id string) (bool, error)
}
