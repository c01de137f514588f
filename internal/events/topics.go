package events

// Topic constants for domain events emitted by the ordering flow.
const (
	TopicOrderSubmitted = "order.submitted"
	TopicQuickOrder     = "order.quick"
	TopicPreviewOpened  = "basket.preview_opened"
)

// DefaultTopics returns the topics delivered to outbound channels.
func DefaultTopics() []string {
	return []string{
		TopicOrderSubmitted,
		TopicQuickOrder,
	}
}

// OrderPayload is the body of order events.
type OrderPayload struct {
	OrderID   string `json:"orderId"`
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp"`
	// Text is the price-free message meant for the shop's chat channel.
	Text      string `json:"text"`
	Link      string `json:"link,omitempty"`
	ItemCount int    `json:"itemCount"`
	Total     string `json:"total"`
	Receipt   string `json:"receipt,omitempty"`
}
