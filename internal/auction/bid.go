package auction

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lapak-labs/backend-lapak/internal/purchase"
)

// NoBid is the sentinel returned for a user who has not placed a bid. It can
// never collide with a real bid because bids are non-negative.
const NoBid int64 = -1

var (
	// ErrNegativeBid rejects bids below zero.
	ErrNegativeBid = errors.New("bid amount must be non-negative")
	// ErrNoBids is returned when completing an auction nobody bid on.
	ErrNoBids = errors.New("auction has no bids")
	// ErrAuctionClosed rejects bids on a completed auction.
	ErrAuctionClosed = errors.New("auction already completed")
)

// Bid is an auction built on the purchase abstraction: it accumulates
// competing biddings while open and resolves to a single winner on
// completion. The transition to completed is one-way.
type Bid struct {
	*purchase.Purchase

	InitialPrice   int64
	AuctionEndTime time.Time

	mu       sync.Mutex
	biddings map[uuid.UUID]int64
}

// NewBid opens an auction for the given basket.
func NewBid(sellerID, shopID uuid.UUID, items map[int64]int64, address string, initialPrice int64, endTime time.Time) *Bid {
	return &Bid{
		Purchase:       purchase.New(sellerID, shopID, items, address, initialPrice),
		InitialPrice:   initialPrice,
		AuctionEndTime: endTime,
		biddings:       make(map[uuid.UUID]int64),
	}
}

// AddBidding records or overwrites the user's bid. No upper bound is enforced
// beyond non-negativity.
func (b *Bid) AddBidding(userID uuid.UUID, amount int64) error {
	if amount < 0 {
		return ErrNegativeBid
	}
	if b.Completed() {
		return ErrAuctionClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.biddings[userID] = amount
	return nil
}

// Bidding returns the user's recorded bid, or NoBid when absent.
func (b *Bid) Bidding(userID uuid.UUID) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount, ok := b.biddings[userID]; ok {
		return amount
	}
	return NoBid
}

// MaxBidding returns the highest recorded bid, or NoBid when nobody bid.
func (b *Bid) MaxBidding() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	amount, _ := b.max()
	return amount
}

// Biddings returns a copy of all recorded bids.
func (b *Bid) Biddings() map[uuid.UUID]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uuid.UUID]int64, len(b.biddings))
	for id, amount := range b.biddings {
		out[id] = amount
	}
	return out
}

// CompleteAuction determines the highest bidder, marks the purchase completed
// with the winning amount as its price, and returns the winner. Equal maximum
// bids resolve deterministically to the lowest user id in byte order, never
// to map iteration order.
func (b *Bid) CompleteAuction() (uuid.UUID, error) {
	b.mu.Lock()
	amount, winner := b.max()
	b.mu.Unlock()
	if amount == NoBid {
		return uuid.Nil, ErrNoBids
	}
	if _, err := b.Complete(); err != nil {
		if errors.Is(err, purchase.ErrAlreadyCompleted) {
			return uuid.Nil, ErrAuctionClosed
		}
		return uuid.Nil, err
	}
	b.SetPrice(amount)
	return winner, nil
}

func (b *Bid) max() (int64, uuid.UUID) {
	best := NoBid
	var winner uuid.UUID
	for id, amount := range b.biddings {
		if amount > best || (amount == best && lessUUID(id, winner)) {
			best = amount
			winner = id
		}
	}
	return best, winner
}

func lessUUID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
