package inventory

import (
	"context"
	"fmt"
	"sync"
)

// Memory is the in-process Ledger used for a single shop. One mutex guards
// the whole ledger so the check and the decrement of a reservation are a
// single critical section; two concurrent reservations can never oversell.
type Memory struct {
	mu     sync.Mutex
	qty    map[int64]int64
	prices map[int64]int64
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		qty:    make(map[int64]int64),
		prices: make(map[int64]int64),
	}
}

// ReserveAll implements Ledger.
func (m *Memory) ReserveAll(_ context.Context, basket map[int64]int64) (Reservation, error) {
	req, err := normalizeBasket(basket)
	if err != nil {
		return Reservation{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, want := range req {
		if m.qty[id] < want {
			return Reservation{}, fmt.Errorf("item %d: %w", id, ErrInsufficientStock)
		}
	}
	res := Reservation{
		Items:      make(map[int64]int64, len(req)),
		UnitPrices: make(map[int64]int64, len(req)),
	}
	for id, want := range req {
		m.qty[id] -= want
		price := m.prices[id]
		res.Items[id] = want
		res.UnitPrices[id] = price
		res.Total += want * price
	}
	return res, nil
}

// Rollback implements Ledger. Quantities are re-added even when the item was
// removed in between, so the pre-reservation stock level is restored exactly.
func (m *Memory) Rollback(_ context.Context, basket map[int64]int64) error {
	req, err := normalizeBasket(basket)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, qty := range req {
		m.qty[id] += qty
	}
	return nil
}

// Restock implements Ledger.
func (m *Memory) Restock(_ context.Context, itemID, delta int64) error {
	if delta < 0 {
		return ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qty[itemID] += delta
	return nil
}

// SetPrice implements Ledger.
func (m *Memory) SetPrice(_ context.Context, itemID, price int64) error {
	if price < 0 {
		return ErrInvalidPrice
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[itemID] = price
	return nil
}

// RemoveItem implements Ledger.
func (m *Memory) RemoveItem(_ context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, hadQty := m.qty[itemID]
	_, hadPrice := m.prices[itemID]
	if !hadQty && !hadPrice {
		return fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}
	delete(m.qty, itemID)
	delete(m.prices, itemID)
	return nil
}

// RemoveQuantity implements Ledger.
func (m *Memory) RemoveQuantity(_ context.Context, itemID, delta int64) error {
	if delta < 0 {
		return ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.qty[itemID]
	if !ok {
		return fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}
	if delta > current {
		return fmt.Errorf("item %d: remove %d of %d: %w", itemID, delta, current, ErrInsufficientStock)
	}
	m.qty[itemID] = current - delta
	return nil
}

// Quantity implements Ledger.
func (m *Memory) Quantity(_ context.Context, itemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qty, ok := m.qty[itemID]
	if !ok {
		return 0, fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}
	return qty, nil
}

// Available implements Ledger.
func (m *Memory) Available(_ context.Context, basket map[int64]int64) (bool, error) {
	req, err := normalizeBasket(basket)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, want := range req {
		if m.qty[id] < want {
			return false, nil
		}
	}
	return true, nil
}

// Prices implements Ledger.
func (m *Memory) Prices(_ context.Context) (map[int64]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]int64, len(m.prices))
	for id, price := range m.prices {
		out[id] = price
	}
	return out, nil
}
