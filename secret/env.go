package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves secret references against the process environment.
// The ref is the environment variable name.
type EnvProvider struct{}

// NewEnvProvider creates an environment-backed provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Name returns the provider name used in secretref values.
func (p *EnvProvider) Name() string {
	return "env"
}

// Resolve looks up ref in the environment. A missing variable is an error;
// distinguishing missing from empty matters for credentials.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %q is not set", ref)
	}
	return value, nil
}

// Close implements Provider. The environment holds no resources.
func (p *EnvProvider) Close() error {
	return nil
}
