package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tgfetch/tgfetch/internal/pubsub"
	"github.com/tgfetch/tgfetch/internal/session"
)

// watch consumes one run's event stream and keeps a single status message
// in the chat up to date. It exits when the run closes its publisher.
func (b *Bot) watch(chatID int64, sub *pubsub.Subscriber[session.Event]) {
	defer sub.Close()

	var statusID int
	failed := 0

	for event := range sub.Receive() {
		switch e := event.(type) {
		case session.RunStarted:
			statusID = b.postStatus(chatID, statusID, fmt.Sprintf("Found %d items.", e.Discovered))
		case session.ItemStarted:
			statusID = b.postStatus(chatID, statusID, fmt.Sprintf("Fetching %d of %d...", e.Index, e.Total))
		case session.ItemFinished:
			if e.Err != nil {
				failed++
				statusID = b.postStatus(chatID, statusID, fmt.Sprintf("Item %d of %d failed, continuing.", e.Index, e.Total))
			}
		case session.ContainerDelivered:
			if e.Err != nil {
				b.reply(chatID, fmt.Sprintf("Archive %d could not be delivered: %v", e.Container.Index, e.Err))
			}
		case session.RunFinished:
			b.finishStatus(chatID, statusID, e, failed)
		}
	}
}

func (b *Bot) finishStatus(chatID int64, statusID int, e session.RunFinished, failed int) {
	var text string
	switch {
	case e.Run().State().Status == session.StatusCancelled:
		text = "Cancelled."
	case e.Err != nil:
		text = fmt.Sprintf("Failed: %v", e.Err)
	default:
		text = fmt.Sprintf("Done, processed %d of %d.", e.Report.Processed, e.Report.Discovered)
		if failed > 0 {
			text += fmt.Sprintf(" %d failed.", failed)
		}
	}
	b.postStatus(chatID, statusID, text)
}

// postStatus sends the status message the first time and edits it after
// that, returning the message ID to edit next time.
func (b *Bot) postStatus(chatID int64, statusID int, text string) int {
	if statusID == 0 {
		msg, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
		if err != nil {
			b.log.Warnw("failed to send status message", "chat_id", chatID, "err", err)
			return 0
		}
		return msg.MessageID
	}
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, statusID, text)); err != nil {
		b.log.Warnw("failed to edit status message", "chat_id", chatID, "err", err)
	}
	return statusID
}
