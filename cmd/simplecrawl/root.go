package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nao1215/simplecrawl/internal/config"
	"github.com/nao1215/simplecrawl/pkg/poller"
	"github.com/spf13/cobra"
)

// Exit codes. A crawl that is still running when polling stops is not a
// failure of the job itself, so it gets its own code.
const (
	exitFailure = 1
	exitTimeout = 2
)

// NewRootCmd creates the root command for simplecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simplecrawl",
		Short: "Client for a self-hosted firecrawl-simple service",
		Long: `simplecrawl talks to a self-hosted firecrawl-simple service.
It scrapes pages, runs crawl jobs until they finish, discovers site URLs and
writes the results as raw and cleaned markdown.

The service URL and API key are taken from --api-url and --api-key, then
from FIRECRAWL_API_URL and FIRECRAWL_API_KEY, then from the configuration
file. Without any of them http://localhost:3002/v1 is used.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("log-format", "text", "Log format: text, json or pretty")
	flags.String("log-file", "", "Also write the log to this file, rotated at 5 MB")
	flags.String("metrics-file", "", "Write request metrics in Prometheus text format to this file")
	flags.String("api-url", "", "Base URL of the service")
	flags.String("api-key", "", "API key of the service")
	flags.StringP("config", "c", "", "Configuration file (default: .simplecrawl in the current or home directory)")
	flags.Duration("timeout", config.DefaultTimeout, "Timeout of each request to the service")
	flags.String("proxy", "", "SOCKS5 proxy address (host:port)")
	flags.Float64("rate-limit", 0, "Maximum requests per second to the service (0 disables)")
	flags.Bool("trace", false, "Record requests as OpenTelemetry spans")
	flags.String("trace-file", "", "Write spans as JSON to this file instead of stderr (with --trace)")
	flags.String("data-dir", config.XDGDataDir(), "Directory of the job history and default output")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewMapCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewCancelCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var timeout *poller.PollTimeoutError
	if errors.As(err, &timeout) {
		return exitTimeout
	}
	return exitFailure
}
