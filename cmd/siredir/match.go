package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/foxzi/siredir/internal/config"
	"github.com/foxzi/siredir/internal/redirect"
)

var matchCmd = &cobra.Command{
	Use:   "match <host+path> [<host+path>...]",
	Short: "Show which rule answers an effective URL",
	Long: `Evaluate effective URLs (Host header followed by path and query, no
separator, e.g. old.example.com/page?x=1) against the configured rules
without starting the server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return matchURLs(cmd.OutOrStdout(), cfg, args)
}

func matchURLs(w io.Writer, cfg *config.Config, urls []string) error {
	rules, err := cfg.RuleSet()
	if err != nil {
		return err
	}

	handler := redirect.NewHandler(rules, slog.New(slog.DiscardHandler))
	for _, u := range urls {
		resp := handler.Lookup(u)
		if loc := resp.Location(); loc != "" {
			fmt.Fprintf(w, "%s -> %d %s\n", u, resp.StatusCode, loc)
		} else {
			fmt.Fprintf(w, "%s -> %d %s\n", u, resp.StatusCode, resp.Body)
		}
	}

	return nil
}
