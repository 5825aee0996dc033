package events

// Topics emitted by the order lifecycle. Payloads are JSON-encoded order
// snapshots.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderShipped   = "order.shipped"
	TopicOrderDelivered = "order.delivered"
	TopicOrderCancelled = "order.cancelled"
)

// TopicForStatus maps a fulfilment status to its lifecycle topic. Returns
// an empty string for statuses without a topic.
func TopicForStatus(status string) string {
	switch status {
	case "shipped":
		return TopicOrderShipped
	case "delivered":
		return TopicOrderDelivered
	case "cancelled":
		return TopicOrderCancelled
	}
	return ""
}
