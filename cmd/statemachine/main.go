// Command statemachine runs one FSM process against a YAML config file
// (spec §6 CLI surface), grounded on
// _examples/cuemby-warren-evalgo-org-eve/cmd/warren/main.go's cobra
// root-command + PersistentFlags idiom.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"statemachine-engine/internal/config"
	"statemachine-engine/internal/engine"
	"statemachine-engine/internal/logging"
	"statemachine-engine/internal/store"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	flagMachineName    string
	flagDebug          bool
	flagActionsDir     string
	flagInitialContext string
	flagMetricsAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "statemachine <config.yaml>",
	Short: "Run a YAML-defined finite state machine worker process",
	Long: `statemachine runs a single long-lived FSM process: it loads a YAML
config (states, events, transitions, actions), binds its per-machine
control socket, and drives the cooperative event loop until it reaches
its terminal state or is signaled to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatemachine,
}

func init() {
	rootCmd.Flags().StringVar(&flagMachineName, "machine-name", "", "overrides metadata.machine_name from the config")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable verbose/development logging")
	rootCmd.Flags().StringVar(&flagActionsDir, "actions-dir", "", "reserved for future external action plugins (unused: actions are compiled in)")
	rootCmd.Flags().StringVar(&flagInitialContext, "initial-context", "", "JSON object merged into the starting context")
	rootCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
}

func runStatemachine(cmd *cobra.Command, args []string) error {
	configPath := args[0]

	if flagDebug {
		os.Setenv("ENVIRONMENT", "development")
	}
	logging.Init()
	defer logging.Sync()

	config.LoadDotEnv()

	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		zap.L().Fatal("failed to load FSM config", zap.Error(err))
	}

	storeCfg, err := store.ConfigFromEnv()
	if err != nil {
		zap.L().Fatal("failed to resolve store config", zap.Error(err))
	}
	db, err := store.Open(storeCfg)
	if err != nil {
		zap.L().Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	var initialContext map[string]interface{}
	if flagInitialContext != "" {
		if err := json.Unmarshal([]byte(flagInitialContext), &initialContext); err != nil {
			zap.L().Fatal("--initial-context is not valid JSON", zap.Error(err))
		}
	}

	eng, err := engine.New(engine.Options{
		Config:         cfg,
		MachineName:    flagMachineName,
		SocketPrefix:   config.SocketPrefix(),
		Store:          db,
		InitialContext: initialContext,
	})
	if err != nil {
		zap.L().Fatal("failed to construct engine", zap.Error(err))
	}

	if flagMetricsAddr != "" {
		go serveMetrics(flagMetricsAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		zap.L().Info("shutdown signal received, stopping engine")
		eng.Stop()
	}()

	return eng.Run(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	zap.L().Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zap.L().Error("metrics server stopped", zap.Error(err))
	}
}
