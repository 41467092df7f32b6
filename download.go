package tgfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Download is the sink a Source fetches into. Each instance writes into a
// single directory (typically one run's scratch directory) and tracks byte
// progress for whoever is watching.
type Download interface {
	// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
	AddDownloadedBytes(n int64)

	// AddExpectedBytes increases how many bytes are expected to be downloaded.
	AddExpectedBytes(n int64)

	// Context is the cancellable context of this Download.
	Context() context.Context

	// Dir returns the directory files are saved into.
	Dir() string

	CreateFile(filename string) (io.WriteCloser, error)

	// Progress returns the downloaded and expected bytes of the download.
	Progress() (int64, int64)

	// SaveHTTPRequest will execute the http.Request with Context() and then download the resulting stream like SaveStream.
	SaveHTTPRequest(filename string, req *http.Request) (string, error)

	// SaveStream will download the stream to the named file, calling AddDownloadedBytes as necessary, and return the
	// full path of the written file.
	SaveStream(filename string, stream io.Reader) (string, error)

	// SaveURL will make a GET request to the URL and then download the resulting stream like SaveStream.
	SaveURL(filename string, url string) (string, error)

	// Write will ignore the data but will send the byte count to AddDownloadedBytes. Allows progress tracking using
	// io.MultiWriter (but ensure the Download is the last writer to avoid counting failed writes).
	Write(p []byte) (n int, err error)
}

type download struct {
	ctx              context.Context
	progressCallback func(int64, int64)
	dir              string
	expectedBytes    int64
	downloadedBytes  int64
}

func (d *download) AddDownloadedBytes(n int64) {
	d.downloadedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) AddExpectedBytes(n int64) {
	d.expectedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) Context() context.Context {
	return d.ctx
}

func (d *download) Dir() string {
	return d.dir
}

func (d *download) CreateFile(filename string) (io.WriteCloser, error) {
	targetPath := d.targetPath(filename)
	if err := os.MkdirAll(filepath.Dir(targetPath), 0775); err != nil {
		return nil, err
	}
	return os.Create(targetPath)
}

func (d *download) Progress() (int64, int64) {
	return d.downloadedBytes, d.expectedBytes
}

func (d *download) SaveHTTPRequest(filename string, req *http.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil request")
	}
	req = req.WithContext(d.ctx)
	client := http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("download failed: unexpected status %s", resp.Status)
	}
	if resp.ContentLength > 0 {
		d.AddExpectedBytes(resp.ContentLength)
	}
	return d.SaveStream(filename, resp.Body)
}

func (d *download) SaveStream(filename string, stream io.Reader) (string, error) {
	f, err := d.CreateFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(io.MultiWriter(f, d), &readerContext{ctx: d.ctx, r: stream})
	if err != nil {
		return "", fmt.Errorf("failed to save stream: %w", err)
	}
	return d.targetPath(filename), nil
}

func (d *download) SaveURL(filename string, url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	return d.SaveHTTPRequest(filename, req)
}

func (d *download) Write(p []byte) (n int, err error) {
	n = len(p)
	d.AddDownloadedBytes(int64(n))
	return n, nil
}

func (d *download) targetPath(filename string) string {
	return filepath.Join(d.dir, filename)
}

type DownloadBuilder interface {
	Build() (Download, error)
	WithContext(ctx context.Context) DownloadBuilder
	WithProgressCallback(f func(downloaded int64, expected int64)) DownloadBuilder
	WithDir(dir string) DownloadBuilder
}

type downloadBuilder struct {
	ctx              context.Context
	progressCallback func(int64, int64)
	dir              string
}

func NewDownloadBuilder() DownloadBuilder {
	return &downloadBuilder{
		ctx: context.Background(),
		dir: ".",
	}
}

func (b *downloadBuilder) Build() (Download, error) {
	if err := os.MkdirAll(b.dir, 0775); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	return &download{
		ctx:              b.ctx,
		progressCallback: b.progressCallback,
		dir:              b.dir,
	}, nil
}

func (b *downloadBuilder) WithContext(ctx context.Context) DownloadBuilder {
	b.ctx = ctx
	return b
}

func (b *downloadBuilder) WithProgressCallback(f func(int64, int64)) DownloadBuilder {
	b.progressCallback = f
	return b
}

func (b *downloadBuilder) WithDir(dir string) DownloadBuilder {
	b.dir = dir
	return b
}
