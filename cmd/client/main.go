package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tyrowin/framechat/internal/client"
)

var (
	name         string
	useWebSocket bool
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:   "client <host> <port>",
	Short: "framechat terminal client",
	Long: `Connects to a framechat server and relays lines typed on stdin.

Commands:
  #gc      list active members
  #getmsg  replay the most recent messages
  #cli     start a private chat; the next line names the target
  #exit    leave the chat`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         runClient,
}

func init() {
	rootCmd.Flags().StringVarP(&name, "name", "n", "", "Display name (prompted when empty)")
	rootCmd.Flags().BoolVar(&useWebSocket, "ws", false, "Connect through the server's WebSocket endpoint; <port> is then the HTTP port")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Log connection details to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runClient(_ *cobra.Command, args []string) error {
	logger := zap.NewNop()
	if debug {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, net.JoinHostPort(args[0], args[1]), useWebSocket, os.Stdout, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	in := bufio.NewReader(os.Stdin)
	if name == "" {
		name, err = promptName(in)
		if err != nil {
			return err
		}
	}

	if err := c.Join(name); err != nil {
		return err
	}

	err = c.Run(ctx, in)
	if errors.Is(err, client.ErrDisconnected) {
		fmt.Fprintln(os.Stderr, "Server closed the connection")
		return nil
	}
	return err
}

func promptName(in *bufio.Reader) (string, error) {
	fmt.Print("Enter your name: ")
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read name: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("a name is required")
	}
	return line, nil
}
