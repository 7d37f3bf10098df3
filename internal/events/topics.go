package events

// Topic constants for domain events emitted by the pricing service.
const (
	TopicCheckoutPricesUpdated = "checkout.prices_updated"
)
