package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/rewind/internal/app"
)

// Report formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.lua>...",
		Short: "Run Lua scripts against a new scene",
		Long: `Runs the scripts in order against one scene and one history, then prints
the final scene and the history listing. Undone items are marked.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScripts,
	}

	cmd.Flags().Bool("json", false, "Print the report as JSON (same as --output json)")
	cmd.Flags().StringP("output", "o", formatText, "Report format: text, json or yaml")
	cmd.Flags().BoolP("watch", "w", false, "Reload the configuration file while scripts run")
	return cmd
}

func runScripts(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	watch, _ := cmd.Flags().GetBool("watch")
	format, _ := cmd.Flags().GetString("output")
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		format = formatJSON
	}
	switch format {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Watch:      watch,
		LogLevel:   logLevel,
		Output:     cmd.OutOrStdout(),
		LogOutput:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Shutdown()

	if srv := serveMetrics(application); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runErr := application.RunScripts(ctx, args...)
	if err := writeReport(cmd.OutOrStdout(), format, application.Report()); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// serveMetrics exposes the application's registry when metrics are enabled
// and an address is configured.
func serveMetrics(application *app.Application) *http.Server {
	cfg := application.Config().Metrics
	gatherer := application.Gatherer()
	if cfg.Addr == "" || gatherer == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger := application.Logger()
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("err", err))
		}
	}()
	return srv
}

func writeReport(w io.Writer, format string, r app.Report) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, r)
	}
}
