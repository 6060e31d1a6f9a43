// Package secret provides a small, dependency-light secret resolution layer
// for backend credentials.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:env:API_KEY
//   - Inline use:  Bearer secretref:env:API_KEY
//
// The usual consumer is the config layer, which resolves the static request
// headers (API keys, bearer tokens) before the HTTP client is built.
package secret
