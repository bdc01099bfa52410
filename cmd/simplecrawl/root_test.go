package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/simplecrawl/internal/config"
	"github.com/nao1215/simplecrawl/pkg/poller"
	"github.com/nao1215/simplecrawl/pkg/schema"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "simplecrawl" {
			t.Errorf("expected use 'simplecrawl', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has global connection flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"api-url", "api-key", "config", "timeout", "proxy", "rate-limit", "trace", "data-dir", "log-format", "log-file", "metrics-file", "trace-file"} {
			if cmd.PersistentFlags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		names := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}
		for _, want := range []string{"scrape", "crawl", "map", "status", "cancel", "history", "init", "version"} {
			if !names[want] {
				t.Errorf("expected %s subcommand", want)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

// TestExitCode tests the mapping of errors to exit codes.
func TestExitCode(t *testing.T) {
	t.Parallel()

	timeout := &poller.PollTimeoutError{JobID: "j", Job: schema.NewCrawlJob("j", "")}
	if got := exitCode(fmt.Errorf("wrapped: %w", timeout)); got != exitTimeout {
		t.Errorf("exitCode(timeout) = %d, expected %d", got, exitTimeout)
	}
	failed := &poller.JobFailedError{Job: schema.NewCrawlJob("j", "")}
	if got := exitCode(failed); got != exitFailure {
		t.Errorf("exitCode(failed) = %d, expected %d", got, exitFailure)
	}
	if got := exitCode(errors.New("boom")); got != exitFailure {
		t.Errorf("exitCode(other) = %d, expected %d", got, exitFailure)
	}
}

// TestBuildConfig tests flag and configuration file precedence.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, sub string, args ...string) (*config.Config, error) {
		t.Helper()

		root := NewRootCmd()
		cmd, _, err := root.Find([]string{sub})
		if err != nil {
			t.Fatalf("failed to find %s: %v", sub, err)
		}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		return buildConfig(cmd)
	}

	t.Run("flags override the file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		fileOutput := filepath.Join(dir, "from-file")
		path := filepath.Join(dir, "config.yaml")
		content := "timeout: 5s\nbatchSize: 2\noutputDir: " + fileOutput + "\nrateLimit: 3\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := parse(t, "scrape", "--config", path, "--batch", "8", "--data-dir", filepath.Join(dir, "data"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BatchSize != 8 {
			t.Errorf("BatchSize = %d, expected 8", cfg.BatchSize)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, expected 5s", cfg.Timeout)
		}
		if cfg.OutputDir != fileOutput {
			t.Errorf("OutputDir = %q, expected %q", cfg.OutputDir, fileOutput)
		}
		if cfg.RateLimit != 3 {
			t.Errorf("RateLimit = %v, expected 3", cfg.RateLimit)
		}
		if cfg.DBDir != filepath.Join(dir, "data") {
			t.Errorf("DBDir = %q", cfg.DBDir)
		}
		if cfg.File == nil {
			t.Error("expected the file to be attached")
		}
	})

	t.Run("data dir sets the default output", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := parse(t, "crawl", "--config", path, "--data-dir", dir, "--interval", "250ms")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.OutputDir != filepath.Join(dir, "output") {
			t.Errorf("OutputDir = %q", cfg.OutputDir)
		}
		if cfg.PollInterval != 250*time.Millisecond {
			t.Errorf("PollInterval = %v", cfg.PollInterval)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		_, err := parse(t, "map", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := parse(t, "scrape", "--config", path, "--batch", "0")
		if !errors.Is(err, config.ErrInvalidBatchSize) {
			t.Errorf("expected ErrInvalidBatchSize, got %v", err)
		}
		_, err = parse(t, "scrape", "--config", path, "--proxy", "not-a-proxy")
		if !errors.Is(err, config.ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

// TestParseHeaders tests "Name: value" parsing.
func TestParseHeaders(t *testing.T) {
	t.Parallel()

	base := map[string]string{"Cookie": "a=1", "Accept-Language": "en"}
	got, err := parseHeaders(base, []string{"Cookie: b=2", "X-Token:  abc "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["Cookie"] != "b=2" || got["X-Token"] != "abc" || got["Accept-Language"] != "en" {
		t.Errorf("unexpected headers: %v", got)
	}
	if base["Cookie"] != "a=1" {
		t.Error("base map was modified")
	}

	if got, err := parseHeaders(nil, nil); err != nil || got != nil {
		t.Errorf("parseHeaders(nil, nil) = %v, %v", got, err)
	}
	for _, bad := range []string{"no-colon", ": value"} {
		if _, err := parseHeaders(nil, []string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

// TestParseFormats tests format name conversion.
func TestParseFormats(t *testing.T) {
	t.Parallel()

	got, err := parseFormats([]string{"markdown", "RAWHTML"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != schema.FormatMarkdown || got[1] != schema.FormatRawHTML {
		t.Errorf("parseFormats() = %v", got)
	}

	_, err = parseFormats([]string{"pdf"})
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected *schema.ValidationError, got %v", err)
	}
}
