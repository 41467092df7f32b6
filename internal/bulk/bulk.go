// Package bulk drives a whole multi-item run: enumerate the source, fetch
// each item in order, group fetched files under a bounding policy, and hand
// finished containers to a deliverer. Individual failures never abort the
// run; only a failed enumeration does.
package bulk

import (
	"context"

	"github.com/tgfetch/tgfetch"
)

// DeliveryMode is how fetched items leave the run.
type DeliveryMode string

const (
	// DeliverInline sends each fetched file on its own, no archiving.
	DeliverInline DeliveryMode = "inline"
	// DeliverSizeArchive groups files into containers bounded by a byte budget.
	DeliverSizeArchive DeliveryMode = "size-archive"
	// DeliverCountArchive groups files into containers bounded by a member count.
	DeliverCountArchive DeliveryMode = "count-archive"
)

// Receipt is returned by a deliverer that hands files to a remote host; a
// deliverer that sends inline returns nil.
type Receipt struct {
	ViewURL   string
	DirectURL string
}

// Container is a closed, packaged archive ready for delivery.
type Container struct {
	Path       string
	Index      int
	Members    int
	TotalBytes int64
}

// Lister enumerates the items behind a channel or playlist URL, in the
// source's original order.
type Lister interface {
	List(ctx context.Context, url string) ([]tgfetch.SourceItem, error)
}

// Fetcher retrieves a single item into destDir.
type Fetcher interface {
	Fetch(ctx context.Context, url string, req tgfetch.FetchRequest, destDir string) (tgfetch.FetchedFile, error)
}

// Resolver fills in the selection metadata (recency, popularity) for one
// item, without fetching it.
type Resolver interface {
	Resolve(ctx context.Context, url string) (tgfetch.SourceItem, error)
}

// Shrinker re-encodes a video file down to a byte budget.
type Shrinker interface {
	Shrink(ctx context.Context, in, out string, targetBytes int64, maxHeight int) error
}

// Deliverer gets finished artifacts to the requester.
type Deliverer interface {
	DeliverFile(ctx context.Context, file tgfetch.FetchedFile) (*Receipt, error)
	DeliverContainer(ctx context.Context, container Container) (*Receipt, error)
}

// Reporter receives run progress. Implementations must be fast; the run
// loop calls them synchronously.
type Reporter interface {
	RunStarted(total int)
	ItemStarted(index, total int, url string)
	ItemFinished(index, total int, err error)
	ContainerDelivered(container Container, receipt *Receipt, err error)
	RunFinished(processed, total int)
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) RunStarted(int)                                {}
func (NopReporter) ItemStarted(int, int, string)                  {}
func (NopReporter) ItemFinished(int, int, error)                  {}
func (NopReporter) ContainerDelivered(Container, *Receipt, error) {}
func (NopReporter) RunFinished(int, int)                          {}
