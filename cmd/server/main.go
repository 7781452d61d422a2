// Package main runs the scheduled intent execution service: calendar
// ingestion, timed transfer execution and the JSON/metrics HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"calendefi/internal/config"
	"calendefi/internal/domain"
	"calendefi/internal/intent"
	"calendefi/internal/wallet"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "calendefi",
		Short:        "Execute Solana transfers scheduled as calendar events",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("rpc-url", "https://api.devnet.solana.com", "Solana JSON-RPC endpoint")
	serveCmd.Flags().String("ws-url", "", "Solana WebSocket endpoint (confirmation by polling when empty)")
	serveCmd.Flags().Int("rpc-max-retries", 3, "maximum RPC retry attempts")
	serveCmd.Flags().String("cluster", "devnet", "cluster name used in explorer links")
	serveCmd.Flags().Duration("confirm-timeout", 40*time.Second, "transfer confirmation timeout")
	serveCmd.Flags().Bool("allow-off-curve", false, "allow transfers to program-derived addresses")
	serveCmd.Flags().String("wallet-secret", "", "secret mixed into wallet derivation")
	serveCmd.Flags().Duration("execution-interval", 30*time.Second, "execution loop period")
	serveCmd.Flags().Duration("ingestion-interval", 60*time.Second, "ingestion loop period")
	serveCmd.Flags().Duration("call-timeout", 45*time.Second, "timeout for each provider or ledger call")
	serveCmd.Flags().Int("max-results", 20, "upcoming events fetched per calendar per tick")
	serveCmd.Flags().String("feeds", "", "YAML file mapping calendars to ICS feeds")
	serveCmd.Flags().Duration("horizon", 30*24*time.Hour, "ICS look-ahead horizon")
	serveCmd.Flags().StringSlice("calendar", nil, "calendar ids to onboard at startup (comma-separated)")
	serveCmd.Flags().String("journal", config.JournalMemory, "execution journal backend (none, memory, postgres, clickhouse)")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN for the journal")
	serveCmd.Flags().String("ch-dsn", "", "ClickHouse DSN for the journal")

	root.AddCommand(serveCmd)

	walletCmd := &cobra.Command{
		Use:   "wallet <calendar-id>",
		Short: "Print the wallet address derived for a calendar",
		Args:  cobra.ExactArgs(1),
		RunE:  runWallet,
	}
	walletCmd.Flags().String("wallet-secret", "", "secret mixed into wallet derivation")

	root.AddCommand(walletCmd)

	parseCmd := &cobra.Command{
		Use:   "parse <title> [description]",
		Short: "Print the intent parsed from an event title",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runParse,
	}

	root.AddCommand(parseCmd)

	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	err = srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", zap.Error(err))
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func runWallet(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	w := wallet.Derive(domain.CalendarID(args[0]), []byte(cfg.WalletSecret))
	fmt.Fprintln(cmd.OutOrStdout(), w.Address)
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	desc := ""
	if len(args) > 1 {
		desc = args[1]
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(intent.Parse(args[0], desc))
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// loadEnvFile reads KEY=VALUE pairs from ./.env without overriding the
// process environment.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		// Don't override existing env vars
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
}
