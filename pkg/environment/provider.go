// Package environment abstracts how configuration secrets and overrides
// (provider API keys, the request store's shared admin key) are resolved,
// so the core never reads os.Getenv directly outside this package.
package environment

import "context"

// Provider resolves the value of a named variable. A variable that is not
// set returns ("", nil): "not set" is not an error. An error is reserved for
// a backend that could not be consulted at all (e.g. a malformed env file).
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}
