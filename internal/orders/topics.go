package orders

const (
	TopicOrderPlaced       = "commerce.order.placed"
	TopicOrderCancelled    = "commerce.order.cancelled"
	TopicInventoryAdjusted = "commerce.inventory.adjusted"
)

// Partition key = order_id supaya semua event satu order tetap berurutan.
func PartitionKey(id string) []byte { return []byte(id) }
