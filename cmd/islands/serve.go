package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/islands/internal/dev"
)

func serveCmd() *cobra.Command {
	var (
		port     int
		host     string
		pages    string
		raw      bool
		noReload bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory of pages",
		Long: `Serve the pages directory with server directives and live reload.

Each HTML page is hydrated once on the server before it is sent, so the
browser receives the markup its directives produce. Connected browsers
reload when a page changes.

Examples:
  islands serve
  islands serve --port=8080 --pages=site
  islands serve --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Dev.Port = port
			}
			if host != "" {
				cfg.Dev.Host = host
			}
			if pages != "" {
				cfg.Dev.Pages = pages
			}
			if raw {
				off := false
				cfg.Dev.ServerDirectives = &off
			}
			if noReload {
				off := false
				cfg.Dev.Watch = &off
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			server := dev.NewServer(dev.ServerOptions{
				Config: cfg,
				Logger: slog.Default(),
				OnReload: func(clients int) {
					success("Reloaded %d browsers", clients)
				},
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\n  Shutting down...")
				cancel()
			}()

			success("Serving %s at %s", cfg.PagesPath(), cfg.DevURL())
			return server.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from islands.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from islands.json)")
	cmd.Flags().StringVar(&pages, "pages", "", "Directory of pages (default from islands.json)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Serve pages without server directives")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Disable watching and live reload")

	return cmd
}
