// Package config loads the runtime configuration of the plugin process from
// multiple sources (YAML file, environment variables, CLI flags) with
// precedence: CLI flags > YAML config > Environment variables > Defaults.
// Provider settings themselves live in provider documents, see providerconfig.
package config
