package repositories

import (
	"context"
)

// UserRepository exposes the one query the sweeper needs: stable ascending-id
// pagination over all accounts.
type UserRepository interface {
	// PageUserIDs returns up to limit user ids strictly greater than afterID,
	// in ascending order.
	PageUserIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}
