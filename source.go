package tgfetch

import (
	"context"
	"time"

	"github.com/tgfetch/tgfetch/generic"
)

// FetchMode selects what is extracted from a source.
type FetchMode string

const (
	ModeVideo FetchMode = "video"
	ModeAudio FetchMode = "audio"
)

// FetchRequest describes how a single item should be fetched.
type FetchRequest struct {
	Mode FetchMode
	// MaxHeight caps the video resolution; ignored in audio mode. Zero means "best available".
	MaxHeight int
}

// SourceItem is one downloadable unit discovered by enumerating a channel or
// playlist. PublishedAt and Views are only known when the lister (or a later
// per-item resolve) could provide them; they influence selection, never
// archiving.
type SourceItem struct {
	URL         string
	Title       string
	PublishedAt generic.Option[time.Time]
	Views       generic.Option[int64]
}

// FetchedFile is a successfully fetched item on local disk. It is owned by
// the run that fetched it and is deleted with the run's scratch directory.
type FetchedFile struct {
	Path     string
	Title    string
	Ext      string
	Size     int64
	Duration time.Duration // zero if unknown
}

type SourceInfo interface {
	ID() string
	Title() string
}

// A Source is a single matched item that can be fetched.
type Source interface {
	// URL should return the canonical URL for this source. It is assumed that the Provider.Match that created the
	// Source would successfully match this canonical URL.
	URL() string
	// Info should return information about the item if available, or nil if not. Expected to be nil until after a
	// successful call to Recon.
	Info() SourceInfo
	// Recon should fetch and store additional information about the item, such that Info will return non-nil.
	Recon(context.Context) error
	// Fetch should retrieve the actual media into the Download sink, returning the resulting local file.
	Fetch(context.Context, FetchRequest, Download) (FetchedFile, error)
}

// A Lister is a Source that refers to many items (a channel or playlist)
// and can enumerate them in their original order.
type Lister interface {
	Source
	List(context.Context) ([]SourceItem, error)
}

// An ItemSource can expose its resolved metadata as a SourceItem, giving
// the selection policies recency and popularity for items the lister could
// not annotate.
type ItemSource interface {
	Source
	Item() (SourceItem, error)
}
