package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foxzi/siredir/internal/config"
)

var (
	initBind   string
	initFrom   string
	initTo     string
	initStatus int
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize Siredir configuration",
	Long: `Create a Siredir configuration file with a single host redirect.

Every path and query under the old host is carried over to the new base URL.

Examples:
  # Interactive mode - prompts for missing values
  siredir init

  # Non-interactive with all flags
  siredir init --from old.example.com --to https://new.example.com --status 301`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initBind, "bind", config.DefaultBindAddr, "Listen address")
	initCmd.Flags().StringVar(&initFrom, "from", "", "Host to redirect from (e.g., old.example.com)")
	initCmd.Flags().StringVar(&initTo, "to", "", "Base URL to redirect to (e.g., https://new.example.com)")
	initCmd.Flags().IntVar(&initStatus, "status", 0, "Redirect status code (default 301)")
	initCmd.Flags().StringVarP(&initOutput, "output", "o", config.DefaultPath, "Output configuration file path")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if initFrom == "" {
		initFrom = prompt(reader, out, "Host to redirect from (e.g., old.example.com)", "")
		if initFrom == "" {
			return fmt.Errorf("source host is required")
		}
	}

	if initTo == "" {
		initTo = prompt(reader, out, "Base URL to redirect to", "https://"+initFrom)
	}
	initTo = strings.TrimSuffix(initTo, "/")

	if initStatus == 0 {
		answer := prompt(reader, out, "Status code", "301")
		code, err := strconv.Atoi(answer)
		if err != nil {
			return fmt.Errorf("invalid status code %q", answer)
		}
		initStatus = code
	}

	if !initForce {
		if _, err := os.Stat(initOutput); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", initOutput)
		}
	}

	content := generateConfig()

	// Refuse to write something serve would reject
	cfg, err := config.Parse([]byte(content))
	if err != nil {
		return err
	}
	if _, err := cfg.RuleSet(); err != nil {
		return err
	}

	if err := os.WriteFile(initOutput, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "Configuration saved to: %s\n", initOutput)
	fmt.Fprintf(out, "\nNext steps:\n")
	fmt.Fprintf(out, "  siredir -c %s config validate\n", initOutput)
	fmt.Fprintf(out, "  siredir -c %s match %s/some/path\n", initOutput, initFrom)
	fmt.Fprintf(out, "  siredir -c %s serve\n", initOutput)

	return nil
}

func prompt(reader *bufio.Reader, w io.Writer, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(w, "%s [%s]: ", question, defaultValue)
	} else {
		fmt.Fprintf(w, "%s: ", question)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

func generateConfig() string {
	var sb strings.Builder

	sb.WriteString("# Siredir configuration\n")
	sb.WriteString("# Generated by: siredir init\n\n")

	fmt.Fprintf(&sb, "bind_to:\n  - %q\n\n", initBind)

	sb.WriteString("# Rules are tried in order against host + path + query; first match wins.\n")
	sb.WriteString("redirects:\n")
	fmt.Fprintf(&sb, "  - re: '^%s(/.*)$'\n", regexp.QuoteMeta(initFrom))
	// $ in the target is literal, not a backreference
	fmt.Fprintf(&sb, "    rewrite_rule: '%s$1'\n", strings.ReplaceAll(initTo, "$", "$$"))
	fmt.Fprintf(&sb, "    status_code: %d\n\n", initStatus)

	sb.WriteString("server:\n")
	sb.WriteString("  shutdown_timeout: 30s\n")
	sb.WriteString("  # allowed_ips: [\"10.0.0.0/8\"]\n")
	sb.WriteString("  # rate_limit:\n")
	sb.WriteString("  #   requests_per_second: 100\n\n")

	sb.WriteString("logging:\n")
	sb.WriteString("  level: info\n")
	sb.WriteString("  format: json\n")

	return sb.String()
}
