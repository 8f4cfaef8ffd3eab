// Package config loads application configuration from environment variables
// prefixed TRADEGATE_, optionally layered over a YAML file named by
// TRADEGATE_CONFIG_FILE. Environment always wins over the file, and the file
// wins over built-in defaults.
package config
