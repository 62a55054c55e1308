package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/web"
	"github.com/spf13/cobra"
)

var (
	serveConfigPath string
	serveListen     string
	serveRedisURL   string
	serveInstance   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	Long: `Run the dashboard HTTP server.

Serves the HTML dashboard, the JSON API, the GEXF routing graph and the
/varz Prometheus endpoint until interrupted. Every request reads the
current fleet state from Redis, so the pages are always live.

Examples:
  # Serve with defaults (local Redis, :8080)
  warren serve

  # Serve a named fleet instance on another port
  warren serve --instance prod --listen :9000

  # Load xref links and other settings from a config file
  warren serve --config warren.yml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to warren.yml (optional)")
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().StringVar(&serveRedisURL, "redis-url", "", "Redis connection URL (default redis://localhost:6379)")
	serveCmd.Flags().StringVarP(&serveInstance, "instance", "n", "", "Fleet instance name (default \"default\")")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd, serveConfigPath, serveRedisURL, serveInstance)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = serveListen
	}

	client, err := connectFleet(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	server, err := web.NewServer(client, cfg)
	if err != nil {
		return fmt.Errorf("failed to create dashboard server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// Setup graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	printer.Info("Warren dashboard for instance '%s' listening on %s\n", cfg.Instance, cfg.Listen)

	select {
	case sig := <-sigCh:
		printer.Info("Received signal %v, shutting down gracefully...\n", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		// Drain the serve goroutine; Shutdown makes it return ErrServerClosed
		<-errCh
	case serveErr := <-errCh:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return printer.Error(
				"dashboard server failed",
				fmt.Sprintf("Error: %v", serveErr),
				[]string{fmt.Sprintf("Check that %s is not already in use", cfg.Listen)},
			)
		}
	}

	printer.Success("Dashboard stopped\n")
	return nil
}

// loadConfig resolves configuration with flag > environment > file > default
// precedence. config.Load handles everything below flags.
func loadConfig(cmd *cobra.Command, path, redisURL, instance string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.Error(
			"failed to load configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check that %s exists and is valid YAML", path)},
		)
	}
	if cmd.Flags().Changed("redis-url") {
		cfg.RedisURL = redisURL
	}
	if cmd.Flags().Changed("instance") {
		cfg.Instance = instance
	}
	return cfg, nil
}
