// Package main provides the chatsession terminal client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/comigor/chatsession/internal/config"
	"github.com/comigor/chatsession/internal/history"
	"github.com/comigor/chatsession/internal/llm"
	"github.com/comigor/chatsession/internal/logger"
	"github.com/comigor/chatsession/internal/session"
)

var (
	configPath string
	logLevel   string
)

// rootCmd runs the interactive chat loop
var rootCmd = &cobra.Command{
	Use:   "chatsession",
	Short: "Chat with a completion service from the terminal",
	Long: `Each line you type is sent as a turn to the completion service.
Press Ctrl-C while waiting for a reply to cancel the turn; its text comes back
as the draft and an empty line resends it. Type /quit to leave.`,
	SilenceUsage: true,
	RunE:         runChat,
}

// historyCmd prints the persisted conversation
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the stored conversation and exit",
	RunE:  runHistory,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml or $CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*config.Config, *history.KVStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)

	store, err := history.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return cfg, store, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := llm.New(cfg.Completion)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	ctrl := session.New(ctx, client, store, session.WithErrorHandler(func(err error) {
		fmt.Fprintf(errOut, "! reply failed: %v (your message was kept)\n", err)
	}))

	printHistory(cmd.OutOrStdout(), ctrl.State().History)

	r := &repl{
		ctrl:      ctrl,
		in:        cmd.InOrStdin(),
		out:       cmd.OutOrStdout(),
		interrupt: osInterrupt,
	}
	return r.run()
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	_, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	printHistory(cmd.OutOrStdout(), store.Load(ctx))
	return nil
}

// osInterrupt delivers Ctrl-C only while a turn is pending; otherwise the
// default behaviour (terminate) applies.
func osInterrupt() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}
