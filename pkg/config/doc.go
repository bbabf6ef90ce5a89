// Package config defines the service configuration, loaded from a YAML
// file with defaults applied, environment variable overrides, and an
// aggregated validation pass.
package config
