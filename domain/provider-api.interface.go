package domain

// ProviderSyncAPI fetches a point-in-time depth snapshot from the exchange.
// The call blocks; retry policy lives inside the provider implementation.
type ProviderSyncAPI interface {
	OrderBookSnapshot(symbol *MarketSymbol, limit int) (*OrderBookSnapshot, error)
}

// ProviderStreamAPI subscribes to the exchange's incremental depth feed.
type ProviderStreamAPI interface {
	DepthDiffStream(symbol *MarketSymbol) (*Subscription[*OrderBookUpdate], error)
}
