// Package ratelimiter implements fixed-window request limits keyed by an
// arbitrary string (usually the client IP). Counters live in a Store: an
// in-memory map for single instances and tests, or Redis when several
// storefront instances share one limit.
package ratelimiter
