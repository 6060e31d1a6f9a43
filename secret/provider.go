package secret

import "context"

// Provider fetches credential material from one backing store. The env
// provider ships with the package; deployments with a real secret manager
// implement this interface and register it on a Resolver.
//
// Implementations must be safe for concurrent use and must never log the
// values they resolve.
type Provider interface {
	// Name is the tag referenced by "secretref:<name>:<ref>" values.
	Name() string

	// Resolve returns the credential value for ref.
	Resolve(ctx context.Context, ref string) (string, error)

	// Close releases any backing connections.
	Close() error
}
