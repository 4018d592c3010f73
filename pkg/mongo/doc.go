// Package mongo connects to MongoDB with the v2 driver and provides the
// small helpers the storefront stores share: a connect loop with retry, a
// readiness check and a transaction runner.
package mongo
