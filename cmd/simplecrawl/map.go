package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/simplecrawl/pkg/schema"
)

// NewMapCmd creates the map command.
func NewMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map URL",
		Short: "List the URLs of a site without scraping them",
		Long: `Map asks the service for the URLs reachable from URL and prints one per line.

Examples:
  # List the pages of a site
  simplecrawl map https://example.com

  # Only URLs related to "pricing", including subdomains
  simplecrawl map --search pricing --include-subdomains https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runMapCmd,
	}

	cmd.Flags().String("search", "", "Only return URLs related to this query")
	cmd.Flags().IntP("limit", "l", schema.DefaultMapLimit, "Maximum number of URLs")
	cmd.Flags().Bool("include-subdomains", false, "Include URLs of subdomains")
	cmd.Flags().Bool("use-sitemap", false, "Discover URLs from sitemap.xml")
	cmd.Flags().Bool("json", false, "Print the URLs as a JSON array")

	return cmd
}

// runMapCmd executes the map command.
func runMapCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	r := &flagReader{flags: cmd.Flags()}
	opts := schema.MapOptions{
		Search:            r.str("search"),
		Limit:             schema.Int(r.integer("limit")),
		IncludeSubdomains: r.boolean("include-subdomains"),
		IgnoreSitemap:     schema.Bool(!r.boolean("use-sitemap")),
	}
	jsonOutput := r.boolean("json")
	if r.err != nil {
		return r.err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	client, err := a.client()
	if err != nil {
		return err
	}

	result, err := client.Map(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("failed to map %s: %w", args[0], err)
	}
	a.logger.Debug("map finished", "url", args[0], "links", len(result.Links))

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Links)
	}
	for _, link := range result.Links {
		fmt.Fprintln(out, link)
	}
	return nil
}
