package firecrawl

import (
	"errors"
	"testing"
)

// TestResolveBaseURL tests the explicit, lookup, default layering.
func TestResolveBaseURL(t *testing.T) {
	t.Parallel()

	env := MapLookup(map[string]string{EnvBaseURL: "https://env.test/v1/"})

	testCases := []struct {
		name     string
		explicit string
		lookup   LookupFunc
		expected string
		source   Source
	}{
		{"explicit wins", "https://explicit.test/v1", env, "https://explicit.test/v1", SourceExplicit},
		{"environment is next", "", env, "https://env.test/v1", SourceLookup},
		{"blank environment falls through", "", MapLookup(map[string]string{EnvBaseURL: "  "}), DefaultBaseURL, SourceDefault},
		{"default without lookup", "", nil, DefaultBaseURL, SourceDefault},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, source, err := ResolveBaseURL(tc.explicit, tc.lookup)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("ResolveBaseURL() = %q, expected %q", got, tc.expected)
			}
			if source != tc.source {
				t.Errorf("source = %q, expected %q", source, tc.source)
			}
		})
	}

	t.Run("invalid URL returns ConfigError naming the layer", func(t *testing.T) {
		t.Parallel()

		_, _, err := ResolveBaseURL("", MapLookup(map[string]string{EnvBaseURL: "localhost:3002"}))
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected *ConfigError, got %v", err)
		}
		if cerr.Source != SourceLookup {
			t.Errorf("Source = %q, expected %q", cerr.Source, SourceLookup)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("expected wrapped *ValidationError, got %v", err)
		}
	})
}

// TestResolveAPIKey tests that a missing key is valid.
func TestResolveAPIKey(t *testing.T) {
	t.Parallel()

	key, source := ResolveAPIKey("", MapLookup(nil))
	if key != "" || source != SourceNone {
		t.Errorf("ResolveAPIKey() = %q, %q, expected empty, none", key, source)
	}

	key, source = ResolveAPIKey("", MapLookup(map[string]string{EnvAPIKey: "fc-123"}))
	if key != "fc-123" || source != SourceLookup {
		t.Errorf("ResolveAPIKey() = %q, %q", key, source)
	}
}

// TestChainLookup tests that the first non-empty value wins.
func TestChainLookup(t *testing.T) {
	t.Parallel()

	lookup := ChainLookup(
		nil,
		MapLookup(map[string]string{EnvBaseURL: ""}),
		MapLookup(map[string]string{EnvBaseURL: "https://file.test/v1"}),
		MapLookup(map[string]string{EnvBaseURL: "https://later.test/v1"}),
	)

	got, ok := lookup(EnvBaseURL)
	if !ok || got != "https://file.test/v1" {
		t.Errorf("lookup() = %q, %v", got, ok)
	}
	if _, ok := lookup(EnvAPIKey); ok {
		t.Error("expected missing key")
	}
}
