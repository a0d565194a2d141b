package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/privacypilot/internal/mcp"
	"github.com/ziadkadry99/privacypilot/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the consent dashboard server",
	Long:  `Starts the PrivacyPilot server with the consent API, live policy channel, dashboard, metrics and MCP endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = serverPort
		}

		llmProvider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		database, _, err := openDocStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		mcpserver.Version = Version
		srv := server.New(server.Config{
			Port:            cfg.Port,
			UserID:          cfg.UserID,
			SiteID:          cfg.SiteID,
			AllowAll:        cfg.AllowAllOrigins,
			SandboxInterval: cfg.SandboxInterval,
			WriteTimeout:    cfg.WriteTimeout,
		}, database, llmProvider)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "privacypilot server v%s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", database.Path())
		fmt.Fprintf(os.Stderr, "  Anchor: %s\n", cfg.UserID)
		if llmProvider == nil {
			fmt.Fprintf(os.Stderr, "  Optimizer: fallback suggestions (no provider configured)\n")
		} else {
			fmt.Fprintf(os.Stderr, "  Optimizer: %s (%s)\n", llmProvider.Name(), cfg.Model)
		}

		err = srv.Run(ctx)
		fmt.Fprintln(os.Stderr, "\nServer stopped.")
		return err
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
