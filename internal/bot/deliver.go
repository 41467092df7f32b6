package bot

import (
	"context"
	"fmt"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/internal/bulk"
	"github.com/tgfetch/tgfetch/internal/upload"
)

// telegramDeliverer sends run output into one chat. Files go inline;
// containers go inline while they fit and through the remote uploader
// otherwise (or always, for the count-bounded mode).
type telegramDeliverer struct {
	api          sender
	chatID       int64
	mode         tgfetch.FetchMode
	uploader     *upload.Client
	inlineLimit  int64
	alwaysUpload bool
	log          *zap.SugaredLogger
}

var _ bulk.Deliverer = (*telegramDeliverer)(nil)

func (d *telegramDeliverer) DeliverFile(ctx context.Context, file tgfetch.FetchedFile) (*bulk.Receipt, error) {
	if file.Size > d.inlineLimit {
		return nil, fmt.Errorf("%s is %s, over the %s send limit; try a lower height or audio",
			file.Title, formatBytes(file.Size), formatBytes(d.inlineLimit))
	}
	var msg tgbotapi.Chattable
	switch {
	case d.mode == tgfetch.ModeAudio:
		audio := tgbotapi.NewAudio(d.chatID, tgbotapi.FilePath(file.Path))
		audio.Caption = file.Title
		msg = audio
	case file.Ext == "mp4":
		video := tgbotapi.NewVideo(d.chatID, tgbotapi.FilePath(file.Path))
		video.Caption = file.Title
		msg = video
	default:
		doc := tgbotapi.NewDocument(d.chatID, tgbotapi.FilePath(file.Path))
		doc.Caption = file.Title
		msg = doc
	}
	if _, err := d.api.Send(msg); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", file.Title, err)
	}
	return nil, nil
}

func (d *telegramDeliverer) DeliverContainer(ctx context.Context, container bulk.Container) (*bulk.Receipt, error) {
	if !d.alwaysUpload && container.TotalBytes <= d.inlineLimit {
		doc := tgbotapi.NewDocument(d.chatID, tgbotapi.FilePath(container.Path))
		doc.Caption = fmt.Sprintf("%d files, %s", container.Members, formatBytes(container.TotalBytes))
		if _, err := d.api.Send(doc); err != nil {
			return nil, fmt.Errorf("failed to send archive: %w", err)
		}
		return nil, nil
	}

	receipt, err := d.upload(ctx, container)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Archive %d (%d files, %s):\n%s", container.Index, container.Members, formatBytes(container.TotalBytes), receipt.DirectURL)
	if _, err := d.api.Send(tgbotapi.NewMessage(d.chatID, text)); err != nil {
		d.log.Warnw("failed to announce uploaded archive", "chat_id", d.chatID, "err", err)
	}
	return receipt, nil
}

func (d *telegramDeliverer) upload(ctx context.Context, container bulk.Container) (*bulk.Receipt, error) {
	r, err := d.uploader.Upload(ctx, "", container.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(container.Path), err)
	}
	return &bulk.Receipt{ViewURL: r.ViewURL, DirectURL: r.DirectURL}, nil
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	}
	return fmt.Sprintf("%d KB", n/1024)
}
