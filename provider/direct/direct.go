// Package direct is the lowest-priority fallback provider: it accepts any
// plain http(s) URL and fetches it with a single GET.
package direct

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/generic"
	"github.com/tgfetch/tgfetch/util"
)

var protocols = generic.NewSet("http", "https")

func Match(s string) (tgfetch.Source, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !protocols.Contains(parsedURL.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %v", parsedURL.Scheme)
	}
	filename, err := util.FilenameFromURL(parsedURL)
	if err != nil {
		urlHash := sha1.New()
		generic.Unwrap(urlHash.Write([]byte(s)))
		filename = fmt.Sprintf("%x.bin", urlHash.Sum(nil))
	}
	return &source{url: s, filename: filename}, nil
}

type sourceInfo struct {
	id    string
	title string
}

func (i *sourceInfo) ID() string    { return i.id }
func (i *sourceInfo) Title() string { return i.title }

type source struct {
	url      string
	filename string
}

func (s *source) URL() string {
	return s.url
}

func (s *source) Info() tgfetch.SourceInfo {
	return &sourceInfo{id: s.url, title: s.filename}
}

func (s *source) Recon(ctx context.Context) error {
	// Nothing useful to learn without fetching the file itself.
	return nil
}

func (s *source) Fetch(ctx context.Context, req tgfetch.FetchRequest, d tgfetch.Download) (tgfetch.FetchedFile, error) {
	path, err := d.SaveURL(s.filename, s.url)
	if err != nil {
		return tgfetch.FetchedFile{}, tgfetch.NewFetchError(tgfetch.ReasonOther, err)
	}
	size, _ := d.Progress()
	ext := strings.TrimPrefix(filepath.Ext(s.filename), ".")
	title := strings.TrimSuffix(s.filename, filepath.Ext(s.filename))
	return tgfetch.FetchedFile{
		Path:  path,
		Title: title,
		Ext:   ext,
		Size:  size,
	}, nil
}

func New() tgfetch.Provider {
	return tgfetch.Provider{Name: "direct", Match: Match, Priority: tgfetch.PriorityLowest}
}
