package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/async"
	"github.com/tgfetch/tgfetch/generic"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = tgfetch.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "fetch-one",
		Usage: "fetch a single video or audio track",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Value: ".",
				Usage: "save the fetched file to `DIR`",
			},
			&cli.BoolFlag{
				Name:  "audio",
				Usage: "fetch the best audio-only stream",
			},
			&cli.IntFlag{
				Name:  "height",
				Value: 480,
				Usage: "cap video resolution at `H` pixels",
			},
		},
		Action: func(c *cli.Context) error {
			req := tgfetch.FetchRequest{Mode: tgfetch.ModeVideo, MaxHeight: c.Int("height")}
			if c.Bool("audio") {
				req.Mode = tgfetch.ModeAudio
			}
			for _, source := range c.Args().Slice() {
				if err := fetch(ctx, source, req, c.String("target")); err != nil {
					return err
				}
			}
			return nil
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
		logger.Error(ctx.Err().Error())
		stop()
	}
}

func fetch(ctx context.Context, source string, req tgfetch.FetchRequest, target string) error {
	logger := tgfetch.Logger(ctx).Sugar()
	logger.Infof("Fetching %s into %s", source, target)

	match, err := tgfetch.DefaultProviderRegistry.Match(source)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}

	logger.Info("Starting recon...")
	if err := match.Source.Recon(ctx); err != nil {
		return fmt.Errorf("recon failed: %w", err)
	}

	logger.Info("Starting fetch...")
	bar := progressbar.DefaultBytes(1, "fetching")
	downloadBuilder := tgfetch.NewDownloadBuilder()
	downloadBuilder.WithContext(ctx)
	downloadBuilder.WithProgressCallback(func(downloaded int64, expected int64) {
		if bar.GetMax64() != expected {
			bar.ChangeMax64(expected)
		}
		generic.Unwrap_(bar.Set64(downloaded))
	})
	downloadBuilder.WithDir(target)
	download := generic.Unwrap(downloadBuilder.Build())

	file, err := match.Source.Fetch(ctx, req, download)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	logger.Infof("Fetched %s (%d bytes)", file.Path, file.Size)

	return nil
}
