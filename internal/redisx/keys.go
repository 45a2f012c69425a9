package redisx

import "time"

const (
	// Change feed channel per collection: feed:{collection}
	KeyFeed = "feed:%s"

	// Order status cache: order_status:{student_id}:{order_id} -> status
	// string. Keyed per owner so a cache hit never leaks across students.
	KeyOrderStatus = "order_status:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
