// Package config holds the settings shared by the engine, the HTTP server
// and the command line tool.
//
// A Config starts from DefaultConfig, may be overlaid by a YAML file via
// Load, and is adjusted with functional options. Validate must pass before
// the Config is used.
package config
