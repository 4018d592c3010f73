// Package handler adapts typed request handlers to net/http.
//
// A HandlerFunc receives a Context and a request value R that was filled by
// the configured binders, and returns a Response:
//
//	r.Post("/", handler.Wrap(svc.createOrder,
//		handler.WithBinders[handler.Context, createOrderRequest](binder.JSON(), validate.Bind()),
//		handler.WithErrorHandler[handler.Context, createOrderRequest](errorHandler),
//	))
//
// Responses are JSON envelopes ({"data": ...} or {"error": {...}}). Handlers
// return Error(err) for failures; the error handler logs the cause and renders
// the mapped HTTPError so internal details never reach the client.
package handler
