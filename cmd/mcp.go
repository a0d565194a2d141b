package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/consent"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
	mcpserver "github.com/ziadkadry99/privacypilot/internal/mcp"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, letting AI agents
check the user's consent before running tracking code on their behalf.
The policy is loaded from the stored consent record at startup; use the
server's /mcp endpoint for a policy that follows live decisions.`,
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

		p := policy.New()
		auditStore := audit.NewStore(docs)
		syncer := consent.NewSyncer(p, docs, auditStore, consent.SyncerConfig{UserID: cfg.UserID, SiteID: cfg.SiteID})
		stopWatch, err := syncer.Start(context.Background())
		if err != nil {
			return fmt.Errorf("loading consent record: %w", err)
		}
		defer stopWatch()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "privacypilot MCP server started on stdio (anchor=%s, phase=%s)\n", cfg.UserID, syncer.Phase())

		srv := mcpserver.NewServer(p, inventory.NewStore(docs), auditStore, cfg.UserID, nil)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
