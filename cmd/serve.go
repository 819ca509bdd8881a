/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"botgate/pkg/bot"
	"botgate/pkg/channel"
	"botgate/pkg/channel/console"
	"botgate/pkg/channel/slack"
	"botgate/pkg/channel/telegram"
	"botgate/pkg/config"
	"botgate/pkg/history"
	"botgate/pkg/logger"
	"botgate/pkg/message"
	"botgate/pkg/server"
	"botgate/pkg/store"
	memorystore "botgate/pkg/store/memory"
	sqlitestore "botgate/pkg/store/sqlite"

	"github.com/spf13/cobra"
)

const (
	telegramChannelName = "telegram"
	slackChannelName    = "slack"
	consoleChannelName  = "console"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot gateway",
	Long:  "Runs the BotGate HTTP gateway with the configured channels, push endpoint, and history API.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("invalid config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runGateway(runCtx, cfg, log); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runGateway(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	srv := server.New(cfg.Gateway, log)

	opts := []bot.Option{bot.WithLogger(log)}
	if st != nil {
		opts = append(opts, bot.WithStore(st))
	}

	core, err := bot.New(srv.Router(), echoHandler, opts...)
	if err != nil {
		return fmt.Errorf("initialize dispatch core: %w", err)
	}

	if err := registerChannels(cfg, core, log); err != nil {
		return err
	}

	if cfg.Push.Enabled {
		core.ExposePush(cfg.Push.Token, cfg.Push.Path, nil)
	}

	if cfg.History.Enabled {
		history.Register(srv.Router(), st, cfg.History.Path, cfg.History.Token, log)
	}

	return srv.Run(ctx)
}

// openStore builds the configured store backend. A nil store disables
// persistence entirely.
func openStore(cfg config.StoreConfig) (store.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		st, err := sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "memory":
		return memorystore.New(), nil, nil
	case "":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func registerChannels(cfg *config.Config, core *bot.Bot, log *slog.Logger) error {
	register := func(name string, ch channel.Channel) error {
		if err := core.Register(name, ch); err != nil {
			return fmt.Errorf("register %s channel: %w", name, err)
		}
		return nil
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		if err := register(telegramChannelName, adapter); err != nil {
			return err
		}
	}

	if cfg.Channels.Slack.Enabled {
		adapter, err := slack.NewAdapter(cfg.Channels.Slack, log)
		if err != nil {
			return fmt.Errorf("configure %s channel: %w", slackChannelName, err)
		}
		if err := register(slackChannelName, adapter); err != nil {
			return err
		}
	}

	if cfg.Channels.Console.Enabled {
		if err := register(consoleChannelName, console.NewAdapter(log)); err != nil {
			return err
		}
	}

	return nil
}

// echoHandler is the built-in demo handler: it mirrors the inbound text
// back to the sender. Embedders replace it by using pkg/bot directly.
func echoHandler(_ context.Context, msg message.Message) (*message.Response, error) {
	return &message.Response{Text: msg.Text, Context: msg.Context}, nil
}
