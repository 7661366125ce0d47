package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/intentui/internal/app"
	"github.com/zjrosen/intentui/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intent resolution HTTP server",
	Long: `Run the HTTP server that resolves intents and renders components.

The server loads the intent and component catalogs named in the configuration,
optionally watches them for changes and exposes:

  POST /intent/resolve              resolve an intent to a component record
  POST /render                      render an intent as JSON or HTML
  GET  /components/{name}/render    render a component with explicit props
  GET  /intents, /components        browse the catalogs
  POST /admin/reload                reload both catalogs
  GET  /health, /metrics            health and prometheus metrics

Example:
  intentui serve                       # Listen on server.addr (default :8080)
  intentui serve --addr 127.0.0.1:9000
  intentui serve --watch               # Reload catalogs when files change`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
	serveCmd.Flags().Bool("watch", false, "reload catalogs when source files change")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("sources.watch", serveCmd.Flags().Lookup("watch"))
}

func runServe(_ *cobra.Command, _ []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	cleanup, err := setupLogging()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.WithVersion(version))
	if err != nil {
		return fmt.Errorf("starting intentui: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close(context.Background())
		return err
	}

	serveErr := a.Serve(ctx, func(port int) {
		fmt.Printf("intentui listening on port %d (%d intents, %d components)\n",
			port, a.Intents.Len(), a.Components.Len())
		fmt.Println("Press Ctrl+C to stop")
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		log.ErrorErr(log.CatConfig, "Error during shutdown", err)
	}
	if serveErr != nil {
		return serveErr
	}
	fmt.Println("intentui stopped")
	return nil
}
