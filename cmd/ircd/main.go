// Ircd is a line-oriented chat server speaking the classic IRC
// request/reply protocol: PASS/NICK/USER registration, channels with
// operator and mode semantics, and channel message routing.
//
// Usage:
//
//	ircd <port> <password> [flags]
//
// The listening port and the shared connection password are positional
// arguments; everything else comes from an optional config file and
// environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goircd/ircd/internal/admin"
	"github.com/goircd/ircd/internal/config"
	"github.com/goircd/ircd/internal/history"
	"github.com/goircd/ircd/internal/logging"
	"github.com/goircd/ircd/irc"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "ircd <port> <password>",
	Short:        "IRC chat server",
	Long:         "A single-event-loop IRC server with channel, operator and mode semantics.",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (yaml, toml or json)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q: must be an integer between 1 and 65535", args[0])
	}
	password := args[1]

	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	server := irc.NewServer(port, password, cfg)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		server.SetRecorder(store)
	}

	if err := server.Setup(); err != nil {
		return err
	}

	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminServer = admin.New(cfg.Admin.Bind, server, store)
		go func() {
			if err := adminServer.Start(); err != nil {
				logging.Error("admin server failed", zap.Error(err))
			}
		}()
		logging.Info("admin server listening", zap.String("bind", cfg.Admin.Bind))
	}

	// The signal handler only requests shutdown; the event loop
	// observes it at its next wakeup.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		logging.Info("shutdown signal received", zap.String("signal", sig.String()))
		server.Stop()
	}()

	server.Run()

	if adminServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adminServer.Shutdown(ctx); err != nil {
			logging.Warn("admin server shutdown failed", zap.Error(err))
		}
	}

	return nil
}
