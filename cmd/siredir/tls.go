package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/foxzi/siredir/internal/config"
	"github.com/foxzi/siredir/internal/tls"
)

var tlsCmd = &cobra.Command{
	Use:   "tls",
	Short: "TLS certificate management",
}

var tlsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show TLS certificate status",
	RunE:  runTLSStatus,
}

func init() {
	tlsCmd.AddCommand(tlsStatusCmd)
	rootCmd.AddCommand(tlsCmd)
}

func runTLSStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return printTLSStatus(cmd.Context(), cmd.OutOrStdout(), cfg)
}

func printTLSStatus(ctx context.Context, w io.Writer, cfg *config.Config) error {
	switch {
	case cfg.TLS.ACME.Enabled:
		fmt.Fprintf(w, "Mode: ACME (Let's Encrypt)\n")
		fmt.Fprintf(w, "Cache: %s\n", cfg.TLS.ACME.CacheDir)

		m := tls.NewACMEManager(cfg.TLS.ACME.Email, cfg.TLS.ACME.Domains, cfg.TLS.ACME.CacheDir)
		certs, err := m.CachedCertificates(ctx)
		if err != nil {
			return fmt.Errorf("failed to read certificate cache: %w", err)
		}

		cached := make(map[string]tls.CertificateInfo, len(certs))
		for _, c := range certs {
			cached[c.Domain] = c
		}
		for _, domain := range m.Domains() {
			c, ok := cached[domain]
			if !ok {
				fmt.Fprintf(w, "  %s: no certificate yet\n", domain)
				continue
			}
			fmt.Fprintf(w, "  %s: expires %s (%d days left)\n", domain, c.NotAfter.Format("2006-01-02"), c.DaysLeft)
		}

	case cfg.TLS.CertFile != "":
		fmt.Fprintf(w, "Mode: manual certificate\n")
		info, err := tls.ReadCertificateInfo(cfg.TLS.CertFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  Subject: %s\n", info.Subject)
		fmt.Fprintf(w, "  DNS names: %v\n", info.DNSNames)
		fmt.Fprintf(w, "  Expires: %s (%d days left)\n", info.NotAfter.Format("2006-01-02"), info.DaysLeft)

	default:
		fmt.Fprintf(w, "TLS is not configured\n")
	}

	return nil
}
