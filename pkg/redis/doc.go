// Package redis connects to Redis with go-redis v9 and exposes a readiness
// check. The client backs the rate limiter and idempotency stores.
package redis
