package orders

const TopicOrderEvents = "order.events"

// Partition key = order_id, so all events for one order stay in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
