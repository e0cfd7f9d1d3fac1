package environment

import (
	"context"
	"os"
	"strings"
)

// OsEnvProvider resolves variables from the process environment.
type OsEnvProvider struct{}

func NewOsEnvProvider() *OsEnvProvider {
	return &OsEnvProvider{}
}

func (p *OsEnvProvider) Get(_ context.Context, name string) (string, error) {
	value, _ := os.LookupEnv(name)
	return value, nil
}

// KeyValueProvider resolves variables from a fixed in-memory map, used to
// inject derived values (e.g. a gateway-rewritten API key) ahead of the
// process environment in a MultiProvider chain.
type KeyValueProvider struct {
	values map[string]string
}

func NewKeyValueProvider(values map[string]string) *KeyValueProvider {
	return &KeyValueProvider{values: values}
}

func (p *KeyValueProvider) Get(_ context.Context, name string) (string, error) {
	return p.values[name], nil
}

// EnvListProvider resolves variables from a "KEY=VALUE" list, the shape
// os.Environ() and exec.Cmd.Env use.
type EnvListProvider struct {
	env []string
}

func NewEnvListProvider(env []string) *EnvListProvider {
	return &EnvListProvider{env: env}
}

func (p *EnvListProvider) Get(_ context.Context, name string) (string, error) {
	for _, e := range p.env {
		n, v, ok := strings.Cut(e, "=")
		if ok && n == name {
			return v, nil
		}
	}
	return "", nil
}
