// Package youtube matches YouTube watch and playlist URLs, using the native
// client for metadata, enumeration and stream download.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/generic"
)

func init() {
	// The Android identity sees far fewer 403 responses on stream URLs.
	// It is set exactly once, before any fetch can run; mutating it later
	// would race with concurrent fetches in other runs.
	youtube.DefaultClient = youtube.AndroidClient
}

type sourceInfo struct {
	id    string
	title string
}

func (i *sourceInfo) ID() string    { return i.id }
func (i *sourceInfo) Title() string { return i.title }

type source struct {
	videoID string
	video   *youtube.Video
}

func (s *source) URL() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", s.videoID)
}

func (s *source) String() string {
	return s.URL()
}

func (s *source) Info() tgfetch.SourceInfo {
	if s.video == nil {
		return nil
	}
	return &sourceInfo{id: s.video.ID, title: s.video.Title}
}

func (s *source) Recon(ctx context.Context) error {
	client := newClient()
	video, err := client.GetVideoContext(ctx, s.URL())
	if err != nil {
		return classify(fmt.Errorf("failed to get video info: %w", err))
	}
	s.video = video
	return nil
}

// Item exposes the resolved metadata as a SourceItem, for the selection
// policies that need recency or popularity.
func (s *source) Item() (tgfetch.SourceItem, error) {
	if s.video == nil {
		return tgfetch.SourceItem{}, errors.New("source not resolved")
	}
	item := tgfetch.SourceItem{
		URL:   s.URL(),
		Title: s.video.Title,
		Views: generic.Some(int64(s.video.Views)),
	}
	if !s.video.PublishDate.IsZero() {
		item.PublishedAt = generic.Some(s.video.PublishDate)
	}
	return item, nil
}

func (s *source) Fetch(ctx context.Context, req tgfetch.FetchRequest, d tgfetch.Download) (tgfetch.FetchedFile, error) {
	if s.video == nil {
		if err := s.Recon(ctx); err != nil {
			return tgfetch.FetchedFile{}, err
		}
	}

	format, err := selectFormat(s.video, req)
	if err != nil {
		// Retry once with the height cap removed before giving up.
		relaxed := req
		relaxed.MaxHeight = 0
		if format, err = selectFormat(s.video, relaxed); err != nil {
			return tgfetch.FetchedFile{}, err
		}
	}

	file, err := s.save(ctx, format, d)
	if isForbidden(err) {
		// One retry with an alternate client identity.
		if retryErr := s.retryForbidden(ctx, req, d, format, &file); retryErr != nil {
			return tgfetch.FetchedFile{}, tgfetch.NewFetchError(tgfetch.ReasonForbidden, retryErr)
		}
		err = nil
	}
	if err != nil {
		return tgfetch.FetchedFile{}, classify(err)
	}
	return file, nil
}

func (s *source) save(ctx context.Context, format *youtube.Format, d tgfetch.Download) (tgfetch.FetchedFile, error) {
	client := newClient()
	stream, size, err := client.GetStreamContext(ctx, s.video, format)
	if err != nil {
		return tgfetch.FetchedFile{}, fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()
	if size > 0 {
		d.AddExpectedBytes(size)
	}

	ext := extFromMimeType(format.MimeType)
	path, err := d.SaveStream(fmt.Sprintf("%s.%s", s.video.ID, ext), stream)
	if err != nil {
		return tgfetch.FetchedFile{}, err
	}
	downloaded, _ := d.Progress()
	return tgfetch.FetchedFile{
		Path:     path,
		Title:    s.video.Title,
		Ext:      ext,
		Size:     downloaded,
		Duration: s.video.Duration,
	}, nil
}

func (s *source) retryForbidden(ctx context.Context, req tgfetch.FetchRequest, d tgfetch.Download, format *youtube.Format, file *tgfetch.FetchedFile) error {
	// Re-resolve so freshly signed stream URLs are used, and disable
	// chunked transfer, which is what usually triggers the 403.
	if err := s.Recon(ctx); err != nil {
		return err
	}
	retryFormat, err := selectFormat(s.video, req)
	if err != nil {
		retryFormat = format
	}
	single := *retryFormat
	single.ContentLength = 0
	got, err := s.save(ctx, &single, d)
	if err != nil {
		return err
	}
	*file = got
	return nil
}

type playlistSource struct {
	source
	listID string
}

func (s *playlistSource) URL() string {
	return fmt.Sprintf("https://www.youtube.com/playlist?list=%s", s.listID)
}

func (s *playlistSource) Recon(ctx context.Context) error {
	// Nothing to resolve up front; enumeration happens in List.
	return nil
}

func (s *playlistSource) Fetch(ctx context.Context, req tgfetch.FetchRequest, d tgfetch.Download) (tgfetch.FetchedFile, error) {
	return tgfetch.FetchedFile{}, errors.New("playlist source must be enumerated, not fetched")
}

func (s *playlistSource) List(ctx context.Context) ([]tgfetch.SourceItem, error) {
	client := newClient()
	playlist, err := client.GetPlaylistContext(ctx, s.URL())
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get playlist: %w", err))
	}
	items := make([]tgfetch.SourceItem, 0, len(playlist.Videos))
	seen := generic.NewSet[string]()
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" || !seen.Add(entry.ID) {
			continue
		}
		items = append(items, tgfetch.SourceItem{
			URL:   fmt.Sprintf("https://www.youtube.com/watch?v=%s", entry.ID),
			Title: entry.Title,
		})
	}
	return items, nil
}

func newClient() *youtube.Client {
	return &youtube.Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// selectFormat picks a progressive (audio+video) format under the height
// cap, or the best audio-only format in audio mode.
func selectFormat(video *youtube.Video, req tgfetch.FetchRequest) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range video.Formats {
		format := &video.Formats[i]
		if req.Mode == tgfetch.ModeAudio {
			if !strings.HasPrefix(format.MimeType, "audio/") {
				continue
			}
			if best == nil || format.Bitrate > best.Bitrate {
				best = format
			}
			continue
		}
		if format.AudioChannels == 0 || format.Height == 0 {
			continue
		}
		if req.MaxHeight > 0 && format.Height > req.MaxHeight {
			continue
		}
		if best == nil || betterVideoFormat(format, best) {
			best = format
		}
	}
	if best == nil {
		return nil, tgfetch.NewFetchError(tgfetch.ReasonFormatUnavailable,
			fmt.Errorf("no playable format for mode=%s max_height=%d", req.Mode, req.MaxHeight))
	}
	return best, nil
}

func betterVideoFormat(candidate, current *youtube.Format) bool {
	if candidate.Height != current.Height {
		return candidate.Height > current.Height
	}
	return candidate.Bitrate > current.Bitrate
}

func extFromMimeType(mimeType string) string {
	mimeType = strings.SplitN(mimeType, ";", 2)[0]
	parts := strings.SplitN(mimeType, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "bin"
	}
	if parts[1] == "webm" && strings.HasPrefix(mimeType, "audio/") {
		return "weba"
	}
	return parts[1]
}

func isForbidden(err error) bool {
	if err == nil {
		return false
	}
	var statusErr youtube.ErrUnexpectedStatusCode
	if errors.As(err, &statusErr) {
		return int(statusErr) == http.StatusForbidden || int(statusErr) == http.StatusUnauthorized
	}
	return false
}

// classify maps library errors onto the fetch failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr youtube.ErrUnexpectedStatusCode
	switch {
	case errors.As(err, &statusErr) && (int(statusErr) == http.StatusForbidden || int(statusErr) == http.StatusUnauthorized):
		return tgfetch.NewFetchError(tgfetch.ReasonForbidden, err)
	case errors.Is(err, youtube.ErrVideoPrivate), errors.Is(err, youtube.ErrLoginRequired):
		return tgfetch.NewFetchError(tgfetch.ReasonForbidden, err)
	default:
		return tgfetch.NewFetchError(tgfetch.ReasonOther, err)
	}
}

// Match recognises YouTube video and playlist URLs.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/watch?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/v/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
//	http(s?)://(www)?.youtube.com/playlist?list={LIST_ID}
//	any of the above with a list= query parameter
func Match(s string) (tgfetch.Source, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if listID, err := extractListID(parsedURL); err == nil {
		return &playlistSource{listID: *listID}, nil
	}
	videoID, err := extractVideoID(parsedURL)
	if err != nil {
		return nil, err
	}
	return &source{videoID: *videoID}, nil
}

func extractListID(url *url.URL) (*string, error) {
	switch url.Hostname() {
	case "www.youtube.com", "m.youtube.com", "youtube.com", "music.youtube.com":
	default:
		return nil, fmt.Errorf("unrecognised hostname")
	}
	id := url.Query().Get("list")
	if id == "" && url.Path == "/playlist" {
		return nil, fmt.Errorf("missing ?list= query parameter")
	}
	if id == "" {
		return nil, fmt.Errorf("not a playlist URL")
	}
	return &id, nil
}

func extractVideoID(url *url.URL) (*string, error) {
	var id string
	switch url.Hostname() {
	case "www.youtube.com", "m.youtube.com", "youtube.com":
		if strings.HasPrefix(url.Path, "/v/") {
			id = strings.SplitN(url.Path, "/", 3)[2]
		} else if url.Path == "/watch" || url.Path == "/details" {
			if url.Query().Has("v") {
				id = url.Query().Get("v")
			} else {
				return nil, fmt.Errorf("missing ?v= query parameter")
			}
		}
	case "youtu.be":
		id = strings.Trim(url.Path, "/")
	default:
		return nil, fmt.Errorf("unrecognised hostname")
	}
	if id == "" {
		return nil, fmt.Errorf("could not extract video ID")
	}
	return &id, nil
}

func New() tgfetch.Provider {
	return tgfetch.Provider{Name: "youtube", Match: Match}
}
