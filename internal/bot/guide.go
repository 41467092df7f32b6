package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const startText = `Hi! Send me a video or playlist link and I'll fetch it for you.

/get <url> fetches one item, /getall <url> fetches a whole playlist.
See /help for the options, or /guide for the long version.`

const helpText = `Commands:
/get <url> [video|audio] [height]
    Fetch one item and send it here. Videos over the size limit are
    re-encoded to fit.
/getall <url> [video|audio] [height] [limit=N|all] [zip|zip=N] [recent=N] [top=N]
    Fetch a playlist or channel. Plain sends each item on its own;
    zip groups them into size-bounded archives; zip=N groups them
    into archives of N items each, delivered as download links.
/cancel
    Stop the current run after the item in flight.
/history
    Your last finished runs.
/guide
    The full guide, as a file.`

const guideText = `tgfetch guide
=============

Fetching one item
-----------------
/get <url> downloads a single video and sends it back here. Options after
the URL, in any order:

  video | audio   pick the stream type (default: video)
  <height>        cap the resolution, e.g. 360, 480, 720 (default: 480)

Videos bigger than the send limit are re-encoded down to fit before
sending. If a video cannot be made small enough, you get a message with
its size instead.

Fetching a playlist or channel
------------------------------
/getall <url> walks the listing in order and fetches each item. All /get
options work here too, plus:

  limit=N | limit=all   how many items to take (default: 10)
  recent=N              the N most recently published items
  top=N                 the N most viewed items
  zip                   pack results into archives bounded by total size;
                        each archive is sent here when it fills up
  zip=N                 pack results into archives of N items each;
                        archives are uploaded and you get download links

Items are fetched one at a time, in order. An item that fails is skipped
and the run continues; the final message tells you how many made it.

Housekeeping
------------
Only one run per chat at a time. /cancel stops a run between items.
/history shows your recent runs and how they went.`

func (b *Bot) sendGuide(chatID int64) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "guide.txt",
		Bytes: []byte(guideText),
	})
	if _, err := b.api.Send(doc); err != nil {
		b.log.Warnw("failed to send guide", "chat_id", chatID, "err", err)
	}
}
