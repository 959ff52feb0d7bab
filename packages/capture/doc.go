// Package capture extracts values from pipeline responses so they can be
// printed or fed into later requests.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers
//   - Response status code and duration
//
// Captures are written as name=source.path, for example
// token=body.token or reqid=header.X-Request-Id.
package capture
