package bulk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/internal/batch"
)

// Config fixes a controller's behaviour for one run. The bounding policy is
// an explicit choice made here, never inferred.
type Config struct {
	Mode      DeliveryMode
	Policy    batch.Policy // required for the archive modes
	Selection Selection
	Request   tgfetch.FetchRequest

	// ShrinkTarget, when positive, re-encodes any video file bigger than
	// this many bytes before it is committed; ShrinkHeight caps the result.
	ShrinkTarget int64
	ShrinkHeight int

	// ScratchDir receives fetched files and containers. Owned by the
	// caller, deleted by the caller.
	ScratchDir string

	ListTimeout    time.Duration
	FetchTimeout   time.Duration
	ShrinkTimeout  time.Duration
	DeliverTimeout time.Duration
}

// Deps are the external capabilities a run consumes. Shrinker and Resolver
// are optional; the rest are required.
type Deps struct {
	Lister    Lister
	Fetcher   Fetcher
	Resolver  Resolver
	Shrinker  Shrinker
	Deliverer Deliverer
	Reporter  Reporter
}

// Report is the final tally of one run.
type Report struct {
	Discovered int
	Processed  int
	Containers int
	Receipts   []Receipt
	// Failures aggregates every per-item and per-container error; the run
	// itself still succeeded.
	Failures error
}

func (r *Report) Summary() string {
	return fmt.Sprintf("processed %d of %d", r.Processed, r.Discovered)
}

// Controller owns one run configuration and can execute runs with it.
type Controller struct {
	config Config
	deps   Deps
	log    *zap.SugaredLogger
}

func New(config Config, deps Deps) *Controller {
	if deps.Reporter == nil {
		deps.Reporter = NopReporter{}
	}
	return &Controller{
		config: config,
		deps:   deps,
		log:    zap.S().Named("bulk"),
	}
}

// Run executes the whole loop for one source URL. The returned error is
// non-nil only for run-fatal problems (enumeration failure); everything
// per-item lands in Report.Failures.
func (c *Controller) Run(ctx context.Context, sourceURL string) (*Report, error) {
	report := &Report{}

	listCtx, cancel := withTimeout(ctx, c.config.ListTimeout)
	items, err := c.deps.Lister.List(listCtx, sourceURL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate source: %w", err)
	}
	items = c.config.Selection.Apply(ctx, items, c.deps.Resolver)
	report.Discovered = len(items)

	c.deps.Reporter.RunStarted(report.Discovered)
	if report.Discovered == 0 {
		c.deps.Reporter.RunFinished(0, 0)
		return report, nil
	}

	var archiver *batch.Archiver
	if c.config.Mode != DeliverInline {
		archiver = batch.NewArchiver(c.config.Policy)
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			report.Failures = multierror.Append(report.Failures, fmt.Errorf("run interrupted: %w", err))
			break
		}
		index := i + 1
		c.deps.Reporter.ItemStarted(index, report.Discovered, item.URL)

		file, err := c.fetchOne(ctx, item.URL)
		if err != nil {
			c.log.Warnw("item failed", "index", index, "url", item.URL, "err", err)
			c.deps.Reporter.ItemFinished(index, report.Discovered, err)
			report.Failures = multierror.Append(report.Failures, fmt.Errorf("item %d: %w", index, err))
			continue
		}
		file = c.maybeShrink(ctx, file)

		if archiver == nil {
			receipt, err := c.deliverFile(ctx, file)
			c.deps.Reporter.ItemFinished(index, report.Discovered, err)
			if err != nil {
				report.Failures = multierror.Append(report.Failures, fmt.Errorf("item %d: %w", index, err))
				continue
			}
			if receipt != nil {
				report.Receipts = append(report.Receipts, *receipt)
			}
			report.Processed++
			continue
		}

		closed := archiver.Add(batch.Member{Path: file.Path, Title: file.Title, Size: file.Size})
		report.Processed++
		c.deps.Reporter.ItemFinished(index, report.Discovered, nil)
		if closed != nil {
			c.flush(ctx, closed, report)
		}
	}

	if archiver != nil {
		if closed := archiver.Flush(); closed != nil {
			c.flush(ctx, closed, report)
		}
	}

	c.deps.Reporter.RunFinished(report.Processed, report.Discovered)
	c.log.Infow("run finished",
		"discovered", report.Discovered,
		"processed", report.Processed,
		"containers", report.Containers,
	)
	return report, nil
}

// withTimeout is context.WithTimeout that treats a non-positive duration as
// "no deadline".
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (c *Controller) fetchOne(ctx context.Context, url string) (tgfetch.FetchedFile, error) {
	fetchCtx, cancel := withTimeout(ctx, c.config.FetchTimeout)
	defer cancel()
	return c.deps.Fetcher.Fetch(fetchCtx, url, c.config.Request, c.config.ScratchDir)
}

// maybeShrink re-encodes an over-budget video, falling back to the original
// file when the transcoder fails or produced nothing smaller.
func (c *Controller) maybeShrink(ctx context.Context, file tgfetch.FetchedFile) tgfetch.FetchedFile {
	if c.deps.Shrinker == nil || c.config.ShrinkTarget <= 0 {
		return file
	}
	if c.config.Request.Mode != tgfetch.ModeVideo || file.Size <= c.config.ShrinkTarget {
		return file
	}
	out := strings.TrimSuffix(file.Path, filepath.Ext(file.Path)) + ".small.mp4"
	shrinkCtx, cancel := withTimeout(ctx, c.config.ShrinkTimeout)
	defer cancel()
	if err := c.deps.Shrinker.Shrink(shrinkCtx, file.Path, out, c.config.ShrinkTarget, c.config.ShrinkHeight); err != nil {
		c.log.Warnw("shrink failed, keeping original", "path", file.Path, "err", err)
		return file
	}
	info, err := os.Stat(out)
	if err != nil {
		return file
	}
	_ = os.Remove(file.Path)
	file.Path = out
	file.Ext = "mp4"
	file.Size = info.Size()
	return file
}

func (c *Controller) deliverFile(ctx context.Context, file tgfetch.FetchedFile) (*Receipt, error) {
	deliverCtx, cancel := withTimeout(ctx, c.config.DeliverTimeout)
	defer cancel()
	return c.deps.Deliverer.DeliverFile(deliverCtx, file)
}

// flush packages a closed batch and delivers the container. Either step
// failing is recorded and reported, then the run simply continues with the
// next (already fresh) batch.
func (c *Controller) flush(ctx context.Context, closed *batch.Batch, report *Report) {
	container := Container{
		Path:       filepath.Join(c.config.ScratchDir, fmt.Sprintf("container-%03d.zip", report.Containers+1)),
		Index:      report.Containers + 1,
		Members:    closed.Len(),
		TotalBytes: closed.TotalBytes(),
	}
	if err := batch.WriteContainer(container.Path, closed); err != nil {
		c.log.Errorw("failed to package container", "index", container.Index, "err", err)
		c.deps.Reporter.ContainerDelivered(container, nil, err)
		report.Failures = multierror.Append(report.Failures, fmt.Errorf("container %d: %w", container.Index, err))
		return
	}
	report.Containers++

	deliverCtx, cancel := withTimeout(ctx, c.config.DeliverTimeout)
	receipt, err := c.deps.Deliverer.DeliverContainer(deliverCtx, container)
	cancel()
	c.deps.Reporter.ContainerDelivered(container, receipt, err)
	if err != nil {
		c.log.Errorw("failed to deliver container", "index", container.Index, "err", err)
		report.Failures = multierror.Append(report.Failures, fmt.Errorf("container %d: %w", container.Index, err))
		return
	}
	if receipt != nil {
		report.Receipts = append(report.Receipts, *receipt)
	}
	// Members are owned by the run's scratch dir; drop them early now that
	// the container is delivered, bulk runs can be large.
	for _, m := range closed.Members() {
		_ = os.Remove(m.Path)
	}
}
