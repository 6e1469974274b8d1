// Package config loads, validates, and normalizes shuttle's TOML
// configuration.
package config
