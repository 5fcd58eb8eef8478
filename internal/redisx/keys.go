package redisx

import "time"

const (
	// Idempotency place order: idem:order:place:{tenant_id}:{external_id} -> order_id
	KeyIdemOrderPlace = "idem:order:place:%s:%s"

	// Cache snapshot inventory per store: inv:snapshot:{tenant_id}:{store_id}:{q}
	KeyInventorySnapshot = "inv:snapshot:%s:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLSnapshot    = 2 * time.Minute
)
