package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/async"
	"github.com/tgfetch/tgfetch/internal/bot"
	"github.com/tgfetch/tgfetch/internal/history"
	"github.com/tgfetch/tgfetch/internal/session"
	_ "github.com/tgfetch/tgfetch/providers"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = tgfetch.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "tgfetch",
		Usage: "telegram bot that fetches videos and playlists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "keep history and scratch space under `DIR` (overrides DATA_DIR)",
			},
		},
		Action: func(c *cli.Context) error {
			return run(ctx, c.String("data-dir"))
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		stop()
		if err = <-result; err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal(err.Error())
		}
	}
}

func run(ctx context.Context, dataDir string) error {
	logger := tgfetch.Logger(ctx).Sugar()

	config, err := tgfetch.LoadConfig()
	if err != nil {
		return err
	}
	if config.BotToken == "" {
		return tgfetch.ErrMissingBotToken
	}
	if dataDir != "" {
		config.DataDir = dataDir
	}

	store, err := history.Open(filepath.Join(config.DataDir, "history.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := session.New(session.Config{
		ScratchRoot: filepath.Join(config.DataDir, "scratch"),
		History:     store,
	}, ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	b, err := bot.New(config, sess)
	if err != nil {
		return err
	}
	logger.Infow("starting", "data_dir", config.DataDir)
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
