// Package config loads the gate's deployment configuration from a YAML file
// with AUTHZ_* environment variable overrides layered on top. Authentication
// is mandatory unless explicitly disabled; an unauthenticated deployment is
// a choice, never a fallback.
package config
