package shop

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lapak-labs/backend-lapak/internal/auction"
	"github.com/lapak-labs/backend-lapak/internal/discount"
	"github.com/lapak-labs/backend-lapak/internal/inventory"
	"github.com/lapak-labs/backend-lapak/internal/policy"
	"github.com/lapak-labs/backend-lapak/internal/purchase"
	"github.com/lapak-labs/backend-lapak/internal/shipping"
)

// Review is one customer rating attached to a shop.
type Review struct {
	UserID  uuid.UUID
	Rating  int32
	Comment string
	At      time.Time
}

// Shop aggregates the item stock, the discount collection, the purchase
// policies, reviews and the shipping method reference. Stock lives in the
// ledger with its own synchronization; the shop mutex guards the rest.
// Discounts and policies are immutable value objects once attached.
type Shop struct {
	ID       uuid.UUID
	Name     string
	Ledger   inventory.Ledger
	Shipping shipping.Method

	mu         sync.RWMutex
	discounts  map[uuid.UUID]discount.Discount
	policies   []*policy.Policy
	categories map[int64]policy.Category
	reviews    []Review
	ratingSum  int64
	purchases  map[uuid.UUID]*purchase.Purchase
	auctions   map[uuid.UUID]*auction.Bid
	chargeRefs map[uuid.UUID]string
}

func newShop(name string, led inventory.Ledger, ship shipping.Method) *Shop {
	return &Shop{
		ID:         uuid.New(),
		Name:       name,
		Ledger:     led,
		Shipping:   ship,
		discounts:  make(map[uuid.UUID]discount.Discount),
		categories: make(map[int64]policy.Category),
		purchases:  make(map[uuid.UUID]*purchase.Purchase),
		auctions:   make(map[uuid.UUID]*auction.Bid),
		chargeRefs: make(map[uuid.UUID]string),
	}
}

// AddDiscount attaches a discount rule and returns its id.
func (s *Shop) AddDiscount(d discount.Discount) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discounts[d.ID()] = d
	return d.ID()
}

// RemoveDiscount detaches a discount rule by id.
func (s *Shop) RemoveDiscount(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discounts[id]; !ok {
		return fmt.Errorf("discount %s: %w", id, ErrUnknownDiscount)
	}
	delete(s.discounts, id)
	return nil
}

// Discounts returns the current discount collection. Order is not significant.
func (s *Shop) Discounts() []discount.Discount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]discount.Discount, 0, len(s.discounts))
	for _, d := range s.discounts {
		out = append(out, d)
	}
	return out
}

// SetPolicy attaches a purchase policy. Every attached policy must hold for a
// basket to check out.
func (s *Shop) SetPolicy(p *policy.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = append(s.policies, p)
}

// Policies returns the attached purchase policies.
func (s *Shop) Policies() []*policy.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*policy.Policy, len(s.policies))
	copy(out, s.policies)
	return out
}

// SetCategory labels an item for category-scoped discounts and policies.
func (s *Shop) SetCategory(itemID int64, category policy.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[itemID] = category
}

// Categories returns a copy of the item category labels.
func (s *Shop) Categories() map[int64]policy.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]policy.Category, len(s.categories))
	for id, c := range s.categories {
		out[id] = c
	}
	return out
}

// AddReview appends a review. Safe under concurrent appends and reads.
func (s *Shop) AddReview(r Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, r)
	s.ratingSum += int64(r.Rating)
}

// Reviews returns a copy of the review list.
func (s *Shop) Reviews() []Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}

// AverageRating returns the mean rating at call time, or 0 with no reviews.
func (s *Shop) AverageRating() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.reviews) == 0 {
		return 0
	}
	return float64(s.ratingSum) / float64(len(s.reviews))
}

func (s *Shop) trackPurchase(p *purchase.Purchase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases[p.ID] = p
}

// Purchase returns a tracked purchase by id.
func (s *Shop) Purchase(id uuid.UUID) (*purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, fmt.Errorf("purchase %s: %w", id, ErrUnknownPurchase)
	}
	return p, nil
}

func (s *Shop) setChargeRef(purchaseID uuid.UUID, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chargeRefs[purchaseID] = ref
}

func (s *Shop) takeChargeRef(purchaseID uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.chargeRefs[purchaseID]
	delete(s.chargeRefs, purchaseID)
	return ref, ok
}

func (s *Shop) trackAuction(b *auction.Bid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[b.ID] = b
}

// Auction returns a tracked auction by id.
func (s *Shop) Auction(id uuid.UUID) (*auction.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, ErrUnknownAuction)
	}
	return b, nil
}
