package events

// Topic constants for domain events emitted by the transaction core.
const (
	TopicPurchasePriced    = "purchase.priced"
	TopicPurchaseCompleted = "purchase.completed"
	TopicPurchaseCanceled  = "purchase.canceled"
	TopicBidPlaced         = "bid.placed"
	TopicAuctionFinalized  = "auction.finalized"
	TopicShopClosed        = "shop.closed"
	TopicStockDepleted     = "stock.depleted"
)
