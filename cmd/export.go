package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/certificate"
	"github.com/ziadkadry99/privacypilot/internal/consent"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a compliance certificate for the current consent record",
	Long: `Builds a compliance certificate from the stored consent record, the tracker
inventory and the audit trail, and writes it as JSON. Use --output - for stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, docs, err := openDocStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		auditStore := audit.NewStore(docs)
		syncer := consent.NewSyncer(policy.New(), docs, auditStore, consent.SyncerConfig{UserID: cfg.UserID, SiteID: cfg.SiteID})
		gen := certificate.NewGenerator(cfg.UserID, syncer, inventory.NewStore(docs), auditStore)

		cert, err := gen.Build(context.Background())
		if errors.Is(err, certificate.ErrNoActiveConsent) {
			return fmt.Errorf("compliance error: %w", err)
		}
		if err != nil {
			return err
		}

		path := exportOutput
		if path == "" {
			path = certificate.Filename(cfg.UserID)
		}

		var w io.Writer = os.Stdout
		if path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			defer f.Close()
			w = f
		}

		if err := certificate.Write(w, cert); err != nil {
			return fmt.Errorf("writing certificate: %w", err)
		}
		if path != "-" {
			fmt.Fprintf(os.Stderr, "Certificate %s written to %s\n", cert.CertificateID, path)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default privacypilot-certificate-<anchor>.json, - for stdout)")
	rootCmd.AddCommand(exportCmd)
}
