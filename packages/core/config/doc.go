// Package config handles configuration loading and management for restpipe.
//
// It provides functionality for:
//   - Loading configuration from JSON or YAML files
//   - Default configuration values
//   - RESTPIPE_* environment overrides
//   - Turning configuration into pipeline client options
//   - Watching the configuration file and applying base URL and token changes
package config
