package inventory

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientStock is returned when a reservation cannot be satisfied.
	// Wrapped errors carry the failing item id.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnknownItem is returned for operations on an item that was never stocked.
	ErrUnknownItem = errors.New("unknown item")
	// ErrInvalidQuantity rejects negative quantities and deltas.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidPrice rejects negative unit prices.
	ErrInvalidPrice = errors.New("invalid price")
)

// Reservation is the consistent snapshot taken at the instant stock was
// decremented for one request. Unit prices are the original (pre-discount)
// prices observed under the same critical section as the decrement, so a
// request never sees a torn quantity or price across its items.
type Reservation struct {
	Items      map[int64]int64
	UnitPrices map[int64]int64
	Total      int64
}

// Ledger tracks per-item available quantity and unit price for one shop.
// Every mutation is atomic with respect to concurrent calls on the same shop;
// different shops never share synchronization.
type Ledger interface {
	// ReserveAll decrements stock for every requested item, all or nothing.
	// Zero-quantity lines are ignored; negative quantities are rejected.
	ReserveAll(ctx context.Context, basket map[int64]int64) (Reservation, error)
	// Rollback re-adds previously reserved quantities. Used only to undo a
	// ReserveAll whose surrounding transaction failed.
	Rollback(ctx context.Context, basket map[int64]int64) error
	// Restock adds quantity for an item, creating it when absent.
	Restock(ctx context.Context, itemID, delta int64) error
	// SetPrice sets the unit price for an item.
	SetPrice(ctx context.Context, itemID, price int64) error
	// RemoveItem clears both quantity and price. Fails for unknown items.
	RemoveItem(ctx context.Context, itemID int64) error
	// RemoveQuantity decrements stock without a purchase. Fails when delta
	// exceeds the current quantity.
	RemoveQuantity(ctx context.Context, itemID, delta int64) error
	// Quantity returns the available quantity for an item.
	Quantity(ctx context.Context, itemID int64) (int64, error)
	// Available reports whether the whole basket could be reserved right now.
	Available(ctx context.Context, basket map[int64]int64) (bool, error)
	// Prices returns the current unit prices of all stocked items.
	Prices(ctx context.Context) (map[int64]int64, error)
}

func normalizeBasket(basket map[int64]int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(basket))
	for id, qty := range basket {
		if qty < 0 {
			return nil, ErrInvalidQuantity
		}
		if qty == 0 {
			continue
		}
		out[id] = qty
	}
	return out, nil
}
