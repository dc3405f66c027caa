package purchase

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyCompleted rejects completion of a purchase that is already final.
	ErrAlreadyCompleted = errors.New("purchase already completed")
	// ErrCompleted rejects item mutations on a completed purchase.
	ErrCompleted = errors.New("purchase is completed")
	// ErrInvalidQuantity rejects non-positive item quantities.
	ErrInvalidQuantity = errors.New("invalid item quantity")
)

// Purchase is one committed checkout: a priced basket that can later be
// completed or cancelled. The items map is mutable only through AddItem and
// RemoveItem while the purchase is open.
type Purchase struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	ShopID  uuid.UUID
	Address string

	mu          sync.Mutex
	items       map[int64]int64
	price       int64
	completed   bool
	completedAt time.Time

	now func() time.Time
}

// New creates a priced, not yet completed purchase.
func New(userID, shopID uuid.UUID, items map[int64]int64, address string, price int64) *Purchase {
	copied := make(map[int64]int64, len(items))
	for id, qty := range items {
		copied[id] = qty
	}
	return &Purchase{
		ID:      uuid.New(),
		UserID:  userID,
		ShopID:  shopID,
		Address: address,
		items:   copied,
		price:   price,
		now:     time.Now,
	}
}

// Items returns a copy of the purchased quantities.
func (p *Purchase) Items() map[int64]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int64]int64, len(p.items))
	for id, qty := range p.items {
		out[id] = qty
	}
	return out
}

// Price returns the payable total.
func (p *Purchase) Price() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price
}

// SetPrice overwrites the payable total; used by the auction flow when the
// winning amount becomes the price.
func (p *Purchase) SetPrice(price int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.price = price
}

// AddItem adds quantity to a line item of an open purchase.
func (p *Purchase) AddItem(itemID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		return ErrCompleted
	}
	p.items[itemID] += qty
	return nil
}

// RemoveItem drops a line item from an open purchase.
func (p *Purchase) RemoveItem(itemID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		return ErrCompleted
	}
	delete(p.items, itemID)
	return nil
}

// Complete marks the purchase final and stamps the completion time.
// Completing twice is an error, not a no-op.
func (p *Purchase) Complete() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		return time.Time{}, ErrAlreadyCompleted
	}
	p.completed = true
	p.completedAt = p.now()
	return p.completedAt, nil
}

// Cancel reverses a completion, clearing the completed flag and timestamp.
// It compensates the purchase record only; restoring inventory is a separate,
// explicit rollback by the caller.
func (p *Purchase) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = false
	p.completedAt = time.Time{}
}

// Completed reports whether the purchase is final.
func (p *Purchase) Completed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// CompletionTime returns the completion timestamp when the purchase is final.
func (p *Purchase) CompletionTime() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completedAt, p.completed
}

// WithClock overrides the completion clock. Test hook.
func (p *Purchase) WithClock(now func() time.Time) *Purchase {
	if now != nil {
		p.now = now
	}
	return p
}
