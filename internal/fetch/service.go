// Package fetch adapts the provider registry to the capabilities a bulk
// run consumes: fetch one item, enumerate a source, resolve item metadata.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch"
)

var ErrNotEnumerable = errors.New("source is not a channel or playlist")

type Service struct {
	registry *tgfetch.ProviderRegistry
	log      *zap.SugaredLogger
}

func NewService(registry *tgfetch.ProviderRegistry) *Service {
	if registry == nil {
		registry = &tgfetch.DefaultProviderRegistry
	}
	return &Service{
		registry: registry,
		log:      zap.S().Named("fetch"),
	}
}

// Fetch matches the URL against the registry and downloads the item into
// destDir.
func (s *Service) Fetch(ctx context.Context, url string, req tgfetch.FetchRequest, destDir string) (tgfetch.FetchedFile, error) {
	match, err := s.registry.Match(url)
	if err != nil {
		return tgfetch.FetchedFile{}, tgfetch.NewFetchError(tgfetch.ReasonOther, err)
	}
	source := match.Source
	if err := source.Recon(ctx); err != nil {
		return tgfetch.FetchedFile{}, err
	}

	d, err := tgfetch.NewDownloadBuilder().
		WithContext(ctx).
		WithDir(destDir).
		Build()
	if err != nil {
		return tgfetch.FetchedFile{}, tgfetch.NewFetchError(tgfetch.ReasonOther, err)
	}

	s.log.Debugw("fetching", "provider", match.ProviderName, "url", url)
	file, err := source.Fetch(ctx, req, d)
	if err != nil {
		return tgfetch.FetchedFile{}, err
	}
	// Progress counting can undershoot (unknown content length); trust the
	// file on disk.
	if info, statErr := os.Stat(file.Path); statErr == nil {
		file.Size = info.Size()
	}
	return file, nil
}

// List enumerates a channel/playlist URL in its original order.
func (s *Service) List(ctx context.Context, url string) ([]tgfetch.SourceItem, error) {
	match, err := s.registry.Match(url)
	if err != nil {
		return nil, err
	}
	lister, ok := match.Source.(tgfetch.Lister)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEnumerable, url)
	}
	return lister.List(ctx)
}

// Resolve fetches selection metadata for one item without downloading it.
func (s *Service) Resolve(ctx context.Context, url string) (tgfetch.SourceItem, error) {
	match, err := s.registry.Match(url)
	if err != nil {
		return tgfetch.SourceItem{}, err
	}
	if err := match.Source.Recon(ctx); err != nil {
		return tgfetch.SourceItem{}, err
	}
	if itemSource, ok := match.Source.(tgfetch.ItemSource); ok {
		return itemSource.Item()
	}
	return tgfetch.SourceItem{URL: url}, nil
}
