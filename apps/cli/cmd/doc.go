// Package cmd implements the restpipe CLI commands using Cobra.
//
// Available commands:
//   - get, post, put, patch, delete: Send one request through the pipeline
//   - load: Drive one endpoint at a fixed rate and report latencies
//   - mock: Serve the demo users API locally
//   - history: List calls recorded in the history database
//   - init: Write a starter config file
//   - version: Show restpipe version information
//
// Global flags and RESTPIPE_* environment variables override the config
// file; see root.go for the precedence.
package cmd
