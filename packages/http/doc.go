// Package http provides the request pipeline used by restpipe.
//
// A Client wraps a pluggable Transport and gives every call the same shape:
//   - Relative paths are resolved against the client's base URL
//   - Default headers, the bearer token and per-call options are merged
//   - Successful responses are normalized into an Envelope
//   - Failures are classified into ServerError, NoResponseError or RequestSetupError
//   - Each call is logged before dispatch and after completion
//
// WithRetry adds opt-in linear backoff around any operation.
package http
