package secret

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Resolver turns configuration values into usable credentials. A value of
// the form "secretref:<provider>:<ref>" is fetched through the named
// provider; any other value is returned after strict environment
// expansion. The config layer runs backend header values through a
// Resolver before the transport ever sees them.
type Resolver struct {
	strict    bool
	providers map[string]Provider
}

// NewResolver creates a resolver over the given providers. In strict mode
// a provider returning an empty value is an error, so a misconfigured
// credential fails at load time instead of producing an empty header.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{strict: strict, providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider under its own name, replacing any previous
// provider registered with that name.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// ParseSecretRef splits a whole-value reference of the form
// "secretref:<provider>:<ref>". ok is false for anything else.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, "secretref:")
	if !found {
		return "", "", false
	}
	provider, ref, ok = strings.Cut(rest, ":")
	if !ok || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// ResolveValue expands environment variables in value and then resolves
// any secret reference it carries, whole-value or embedded in surrounding
// text ("Bearer secretref:env:API_TOKEN").
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}
	if provider, ref, ok := ParseSecretRef(expanded); ok {
		return r.fetch(ctx, provider, ref)
	}
	return r.expandEmbedded(ctx, expanded)
}

// ResolveSlice resolves every value in values, in order.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) ([]string, error) {
	resolved := make([]string, len(values))
	for i, v := range values {
		out, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, err
		}
		resolved[i] = out
	}
	return resolved, nil
}

// ResolveMap resolves every value in input, keyed as given. A nil map
// resolves to nil.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

func (r *Resolver) fetch(ctx context.Context, name, ref string) (string, error) {
	p, ok := r.providers[name]
	if !ok || p == nil {
		return "", fmt.Errorf("secret provider %q is not registered", name)
	}
	value, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && value == "" {
		return "", fmt.Errorf("secret provider %q returned an empty value for %q", name, ref)
	}
	return value, nil
}

var embeddedRefPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

// expandEmbedded replaces every secret reference embedded in value,
// leaving the surrounding text (scheme prefixes, header decorations)
// intact.
func (r *Resolver) expandEmbedded(ctx context.Context, value string) (string, error) {
	matches := embeddedRefPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		resolved, err := r.fetch(ctx, value[m[2]:m[3]], value[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		b.WriteString(value[last:m[0]])
		b.WriteString(resolved)
		last = m[1]
	}
	b.WriteString(value[last:])
	return b.String(), nil
}
