package shop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lapak-labs/backend-lapak/internal/inventory"
	"github.com/lapak-labs/backend-lapak/internal/shipping"
)

var (
	// ErrUnknownShop is returned for a shop id that is not open.
	ErrUnknownShop = errors.New("unknown shop")
	// ErrShopClosed is returned when mutating a shop that was closed.
	ErrShopClosed = errors.New("shop is closed")
	// ErrUnknownDiscount is returned when removing a discount that is not attached.
	ErrUnknownDiscount = errors.New("unknown discount")
	// ErrUnknownPurchase is returned for an untracked purchase id.
	ErrUnknownPurchase = errors.New("unknown purchase")
	// ErrUnknownAuction is returned for an untracked auction id.
	ErrUnknownAuction = errors.New("unknown auction")
)

// Store holds the open and closed shop sets. It is a plain dependency handed
// to whoever needs shop lookup; there is no package-level instance.
type Store struct {
	mu     sync.RWMutex
	open   map[uuid.UUID]*Shop
	closed map[uuid.UUID]*Shop
}

// NewStore returns an empty shop registry.
func NewStore() *Store {
	return &Store{
		open:   make(map[uuid.UUID]*Shop),
		closed: make(map[uuid.UUID]*Shop),
	}
}

// Create opens a new shop backed by the given ledger and shipping method.
func (st *Store) Create(name string, led inventory.Ledger, ship shipping.Method) *Shop {
	s := newShop(name, led, ship)
	st.mu.Lock()
	st.open[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns an open shop. Closed shops are no longer addressable for
// mutation and resolve to ErrShopClosed.
func (st *Store) Get(id uuid.UUID) (*Shop, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s, ok := st.open[id]; ok {
		return s, nil
	}
	if _, ok := st.closed[id]; ok {
		return nil, fmt.Errorf("shop %s: %w", id, ErrShopClosed)
	}
	return nil, fmt.Errorf("shop %s: %w", id, ErrUnknownShop)
}

// Closed returns a closed shop for read-side consumers.
func (st *Store) Closed(id uuid.UUID) (*Shop, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s, ok := st.closed[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("shop %s: %w", id, ErrUnknownShop)
}

// Close moves a shop to the closed set. Closure is terminal.
func (st *Store) Close(id uuid.UUID) (*Shop, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.open[id]
	if !ok {
		if _, wasClosed := st.closed[id]; wasClosed {
			return nil, fmt.Errorf("shop %s: %w", id, ErrShopClosed)
		}
		return nil, fmt.Errorf("shop %s: %w", id, ErrUnknownShop)
	}
	delete(st.open, id)
	st.closed[id] = s
	return s, nil
}

// Open reports the number of open shops.
func (st *Store) Open() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.open)
}
