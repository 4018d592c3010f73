// Package binder populates request structs for handler.Wrap.
//
// JSON decodes the request body strictly: unknown fields, trailing data and
// oversized bodies are rejected, and string fields are trimmed. Path copies
// chi URL parameters into fields tagged `path:"name"`.
package binder
