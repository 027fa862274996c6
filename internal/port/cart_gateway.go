package port

import (
	"context"

	"github.com/rl1809/cartsync/internal/core/domain"
)

// CartGateway talks to the remote, authoritative cart service. Every call
// returns the full cart snapshot after the operation, or a *domain.RequestError.
type CartGateway interface {
	// List fetches the current cart
	List(ctx context.Context) (domain.Snapshot, error)

	// Add adds quantity units of productID
	Add(ctx context.Context, productID string, quantity int) (domain.Snapshot, error)

	// Remove drops the line for productID; removing an absent id is not an error
	Remove(ctx context.Context, productID string) (domain.Snapshot, error)

	// UpdateQuantity sets the quantity of productID
	UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Snapshot, error)

	// Clear empties the cart
	Clear(ctx context.Context) (domain.Snapshot, error)
}
