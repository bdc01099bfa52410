package firecrawl

import (
	"strings"

	"github.com/nao1215/simplecrawl/pkg/schema"
)

const (
	// DefaultBaseURL is the endpoint of a locally running service.
	DefaultBaseURL = "http://localhost:3002/v1"

	// EnvBaseURL names the environment variable holding the base URL.
	EnvBaseURL = "FIRECRAWL_API_URL"

	// EnvAPIKey names the environment variable holding the API key.
	EnvAPIKey = "FIRECRAWL_API_KEY"
)

// Source names the configuration layer a value came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceLookup   Source = "environment"
	SourceDefault  Source = "default"
	SourceNone     Source = "none"
)

// LookupFunc returns the value of a configuration key. It has the signature
// of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ChainLookup returns a LookupFunc that tries each lookup in order and
// returns the first non-empty value.
func ChainLookup(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				return v, true
			}
		}
		return "", false
	}
}

// MapLookup returns a LookupFunc backed by m.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// resolve picks the first non-blank value of explicit, lookup(key) and
// fallback.
func resolve(explicit, key string, lookup LookupFunc, fallback string) (string, Source) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, SourceExplicit
	}
	if lookup != nil {
		if v, ok := lookup(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, SourceLookup
			}
		}
	}
	if fallback != "" {
		return fallback, SourceDefault
	}
	return "", SourceNone
}

// ResolveBaseURL returns the base URL from explicit, then lookup(EnvBaseURL),
// then DefaultBaseURL. A resolved value that is not an absolute http or
// https URL yields *ConfigError.
func ResolveBaseURL(explicit string, lookup LookupFunc) (string, Source, error) {
	raw, source := resolve(explicit, EnvBaseURL, lookup, DefaultBaseURL)
	u, err := schema.ValidateURL(raw)
	if err != nil {
		return "", source, &ConfigError{Field: "base URL", Value: raw, Source: source, Err: err}
	}
	return strings.TrimRight(u, "/"), source, nil
}

// ResolveAPIKey returns the API key from explicit, then lookup(EnvAPIKey).
// An empty key is valid; the service may not require one.
func ResolveAPIKey(explicit string, lookup LookupFunc) (string, Source) {
	return resolve(explicit, EnvAPIKey, lookup, "")
}
