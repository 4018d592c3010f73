// Package logger builds *slog.Logger instances for the storefront.
//
// New applies functional options (format, level, environment presets,
// static attributes) and wraps the chosen slog handler in a decorator that
// pulls request-scoped values such as the request id out of the context on
// every record:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "storefront"),
//		logger.WithContextExtractors(requestid.LogExtractor()),
//	)
//	log.InfoContext(ctx, "order created", logger.OrderID(o.ID))
//
// The attr helpers give common keys a single spelling across packages.
package logger
