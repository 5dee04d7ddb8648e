package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Tyrowin/framechat/internal/server"
)

var (
	configPath string
	httpAddr   string
	history    int
	maxClients int
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "server <port>",
	Short: "framechat relay server",
	Long: `Runs the framechat relay. Clients connect over TCP on <port> and every
chat message is relayed to all other connected clients.

With --http an HTTP listener additionally serves /status, /metrics and a
WebSocket endpoint at /ws speaking the same frame protocol.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "Address for the HTTP surface, e.g. :8081 (disabled when empty)")
	rootCmd.Flags().IntVar(&history, "history", 0, "Number of senders kept for #getmsg replay")
	rootCmd.Flags().IntVar(&maxClients, "max-clients", 0, "Maximum concurrent clients (0 = unlimited)")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}

	addr, err := server.PortAddr(args[0])
	if err != nil {
		return err
	}
	cfg.ListenAddr = addr

	flags := cmd.Flags()
	if flags.Changed("http") {
		cfg.HTTPAddr = httpAddr
	}
	if flags.Changed("history") {
		cfg.HistorySize = history
	}
	if flags.Changed("max-clients") {
		cfg.MaxClients = maxClients
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(*cfg, logger)
	if err := srv.Listen(); err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
