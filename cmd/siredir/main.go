package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/foxzi/siredir/internal/app"
	"github.com/foxzi/siredir/internal/config"
)

var (
	cfgFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "siredir",
	Short: "Siredir - regex redirect gateway",
	Long: `Siredir answers every HTTP request with a redirect chosen by the first
matching regular expression over host + path + query, or 404 when no rule matches.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the redirect gateway",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file and compile redirect rules",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "siredir version %s\n", version)
		if commit != "unknown" {
			fmt.Fprintf(out, "  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Fprintf(out, "  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default "+config.DefaultPath+")")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

// loadConfig loads the -c file, or the default file, or built-in defaults
func loadConfig() (*config.Config, error) {
	cfg, usedDefault, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", cfgFile, err)
	}
	if usedDefault {
		slog.Warn("failed to load default config file, falling back to default configuration",
			"path", config.DefaultPath)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(context.Background())
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	return describeConfig(cmd.OutOrStdout(), cfg)
}

func describeConfig(w io.Writer, cfg *config.Config) error {
	rules, err := cfg.RuleSet()
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Fprintf(w, "Configuration is valid\n")
	fmt.Fprintf(w, "  Bind to: %v\n", cfg.BindTo)
	if cfg.TLS.ListenAddr != "" {
		fmt.Fprintf(w, "  HTTPS: %s\n", cfg.TLS.ListenAddr)
	}
	fmt.Fprintf(w, "  Redirect rules: %d\n", rules.Len())
	for i, rule := range rules.Rules() {
		fmt.Fprintf(w, "    %d. %s -> %s (%d)\n", i+1, rule.Pattern(), rule.Template(), rule.StatusCode())
	}

	return nil
}
