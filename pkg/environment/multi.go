package environment

import "context"

// MultiProvider tries each provider in order, returning the first value
// found. A provider's hard error is propagated immediately; a provider that
// simply doesn't have the variable yields ("", nil) and the chain continues.
type MultiProvider struct {
	providers []Provider
}

func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (p *MultiProvider) Get(ctx context.Context, name string) (string, error) {
	for _, provider := range p.providers {
		value, err := provider.Get(ctx, name)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
	}
	return "", nil
}
