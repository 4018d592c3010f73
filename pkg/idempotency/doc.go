// Package idempotency remembers the outcome of requests that carry a client
// supplied idempotency key, so a retried request returns the first result
// instead of repeating its side effects.
//
// A caller reserves the key before doing work, then completes it with the
// result or releases it on failure:
//
//	rec, created, err := store.Reserve(ctx, key)
//	if !created {
//		// rec.Status is StatusInProgress or StatusCompleted
//	}
//	result, err := doWork()
//	if err != nil {
//		_ = store.Release(ctx, key)
//	}
//	_ = store.Complete(ctx, key, result)
//
// Two implementations are provided: RedisStore for production and MemoryStore
// for tests and single-process runs.
package idempotency
