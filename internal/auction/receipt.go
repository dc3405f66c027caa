package auction

import (
	"time"

	"github.com/google/uuid"
)

// Receipt is a read-side snapshot of an auction as seen by one bidder. It is
// a pure projection; taking one never mutates the auction.
type Receipt struct {
	PurchaseID     uuid.UUID       `json:"purchaseId"`
	ShopID         uuid.UUID       `json:"shopId"`
	Items          map[int64]int64 `json:"items"`
	Address        string          `json:"address"`
	Price          int64           `json:"price"`
	BidderID       uuid.UUID       `json:"bidderId"`
	BidderAmount   int64           `json:"bidderAmount"`
	InitialPrice   int64           `json:"initialPrice"`
	HighestBid     int64           `json:"highestBid"`
	HighestBidder  uuid.UUID       `json:"highestBidder"`
	Completed      bool            `json:"completed"`
	AuctionEndTime time.Time       `json:"auctionEndTime"`
}

// Receipt projects the auction state for the given bidder.
func (b *Bid) Receipt(bidderID uuid.UUID) Receipt {
	b.mu.Lock()
	highest, highestBidder := b.max()
	amount, ok := b.biddings[bidderID]
	b.mu.Unlock()
	if !ok {
		amount = NoBid
	}
	return Receipt{
		PurchaseID:     b.ID,
		ShopID:         b.ShopID,
		Items:          b.Items(),
		Address:        b.Address,
		Price:          b.Price(),
		BidderID:       bidderID,
		BidderAmount:   amount,
		InitialPrice:   b.InitialPrice,
		HighestBid:     highest,
		HighestBidder:  highestBidder,
		Completed:      b.Completed(),
		AuctionEndTime: b.AuctionEndTime,
	}
}
