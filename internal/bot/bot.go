// Package bot is the Telegram-facing surface: it parses commands, starts
// bulk runs through the session, and turns run events into progress message
// edits. All long work happens off the update loop; the loop itself only
// parses and dispatches.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/internal/bulk"
	"github.com/tgfetch/tgfetch/internal/fetch"
	"github.com/tgfetch/tgfetch/internal/session"
	"github.com/tgfetch/tgfetch/internal/transcode"
	"github.com/tgfetch/tgfetch/internal/upload"
)

// sender is the slice of the Telegram API the bot needs; *tgbotapi.BotAPI
// satisfies it.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	config   tgfetch.Config
	session  *session.Session
	fetcher  *fetch.Service
	uploader *upload.Client
	log      *zap.SugaredLogger
}

func New(config tgfetch.Config, sess *session.Session) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &Bot{
		api:      api,
		config:   config,
		session:  sess,
		fetcher:  fetch.NewService(nil),
		uploader: upload.NewClient(config.UploadBase, config.UploadTimeout),
		log:      zap.S().Named("bot"),
	}, nil
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Infow("bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	args := msg.CommandArguments()

	switch msg.Command() {
	case "start":
		b.reply(chatID, startText)
	case "help":
		b.reply(chatID, helpText)
	case "guide":
		b.sendGuide(chatID)
	case "get":
		b.handleGet(chatID, args)
	case "getall":
		b.handleGetAll(chatID, args)
	case "cancel":
		if b.session.Cancel(chatID) {
			b.reply(chatID, "Cancelling, the run will stop after the current item.")
		} else {
			b.reply(chatID, "Nothing is running.")
		}
	case "history":
		b.handleHistory(chatID)
	default:
		b.reply(chatID, "Unknown command, see /help.")
	}
}

func (b *Bot) handleGet(chatID int64, args string) {
	opts, err := parseGetCommand(args, b.config)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	cfg := bulk.Config{
		Mode:         bulk.DeliverInline,
		Request:      opts.Request,
		ShrinkTarget: b.shrinkTarget(opts.Request.Mode),
		ShrinkHeight: opts.Request.MaxHeight,
	}
	b.startRun(chatID, opts.URL, cfg, singleItem{opts.URL})
}

func (b *Bot) handleGetAll(chatID int64, args string) {
	opts, err := parseGetAllCommand(args, b.config)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	cfg := bulk.Config{
		Mode:         opts.Mode,
		Policy:       opts.Policy,
		Selection:    opts.Selection,
		Request:      opts.Request,
		ShrinkTarget: b.shrinkTarget(opts.Request.Mode),
		ShrinkHeight: opts.Request.MaxHeight,
	}
	b.startRun(chatID, opts.URL, cfg, b.fetcher)
}

func (b *Bot) startRun(chatID int64, url string, cfg bulk.Config, lister bulk.Lister) {
	cfg.ListTimeout = b.config.ListTimeout
	cfg.FetchTimeout = b.config.FetchTimeout
	cfg.ShrinkTimeout = b.config.ShrinkTimeout
	cfg.DeliverTimeout = b.config.UploadTimeout

	spec := session.RunSpec{
		SourceURL: url,
		Config:    cfg,
		Deps: bulk.Deps{
			Lister:   lister,
			Fetcher:  b.fetcher,
			Resolver: b.fetcher,
			Shrinker: ffmpegShrinker{},
			Deliverer: &telegramDeliverer{
				api:          b.api,
				chatID:       chatID,
				mode:         cfg.Request.Mode,
				uploader:     b.uploader,
				inlineLimit:  b.config.TargetBytes,
				alwaysUpload: cfg.Mode == bulk.DeliverCountArchive,
				log:          b.log,
			},
		},
	}
	run, err := b.session.Create(chatID, spec)
	if err != nil {
		if errors.Is(err, session.ErrRunInProgress) {
			b.reply(chatID, "A run is already in progress for this chat, /cancel it first.")
		} else {
			b.log.Errorw("failed to start run", "chat_id", chatID, "err", err)
			b.reply(chatID, "Could not start: "+err.Error())
		}
		return
	}
	sub := run.Subscribe()
	go b.watch(chatID, sub)
	run.Start()
}

func (b *Bot) handleHistory(chatID int64) {
	store := b.session.History()
	if store == nil {
		b.reply(chatID, "History is not enabled.")
		return
	}
	records, err := store.Recent(chatID, 10)
	if err != nil {
		b.log.Errorw("failed to read history", "err", err)
		b.reply(chatID, "Could not read history.")
		return
	}
	if len(records) == 0 {
		b.reply(chatID, "No finished runs yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Recent runs:\n")
	for _, rec := range records {
		fmt.Fprintf(&sb, "%s  %s  %d/%d", rec.FinishedAt.Format("2006-01-02 15:04"), rec.SourceURL, rec.Processed, rec.Discovered)
		if rec.Error != "" {
			sb.WriteString("  (failed)")
		}
		sb.WriteString("\n")
	}
	b.reply(chatID, sb.String())
}

// shrinkTarget enables re-encoding only for video; audio files are sent as
// fetched.
func (b *Bot) shrinkTarget(mode tgfetch.FetchMode) int64 {
	if mode == tgfetch.ModeVideo {
		return b.config.TargetBytes
	}
	return 0
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnw("failed to send message", "chat_id", chatID, "err", err)
	}
}

// singleItem is a Lister for one directly-addressed item, so the single and
// bulk paths share the whole run machinery.
type singleItem struct {
	url string
}

func (s singleItem) List(ctx context.Context, url string) ([]tgfetch.SourceItem, error) {
	return []tgfetch.SourceItem{{URL: s.url}}, nil
}

// ffmpegShrinker adapts the transcode package to the run loop's interface.
type ffmpegShrinker struct{}

func (ffmpegShrinker) Shrink(ctx context.Context, in, out string, targetBytes int64, maxHeight int) error {
	return transcode.Shrink(ctx, in, out, targetBytes, maxHeight)
}
