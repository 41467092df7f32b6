// Package upload pushes finished containers to a filebin-style host and
// returns durable links for the requester.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Receipt is the pair of locators returned after successfully delivering a
// container: DirectURL downloads the file, ViewURL shows the hosting bin.
type Receipt struct {
	ViewURL   string
	DirectURL string
}

// Client uploads files to a filebin-compatible host: POST the body with a
// `bin` and `filename` header, links are derived from those names.
type Client struct {
	base       string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        zap.S().Named("upload"),
	}
}

// Upload sends the file into the named bin. The returned error wraps the
// HTTP-layer failure with a truncated response body when the host rejected
// the upload.
func (c *Client) Upload(ctx context.Context, bin string, path string) (Receipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()

	filename := filepath.Base(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/", f)
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("filename", filename)
	req.Header.Set("bin", bin)

	c.log.Infow("uploading container", "bin", bin, "file", filename)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Receipt{}, fmt.Errorf("upload failed: status=%d body=%s", resp.StatusCode, truncate(string(body), 256))
	}
	if bin == "" {
		// The host may assign a bin when none was requested.
		bin = assignedBin(body)
		if bin == "" {
			return Receipt{}, fmt.Errorf("upload accepted but no bin id returned")
		}
	}
	return Receipt{
		ViewURL:   fmt.Sprintf("%s/%s", c.base, bin),
		DirectURL: fmt.Sprintf("%s/%s/%s", c.base, bin, url.PathEscape(filename)),
	}, nil
}

// assignedBin digs the bin id out of the host's response, accepting both a
// top-level id and the nested bin object filebin itself returns.
func assignedBin(body []byte) string {
	var obj struct {
		ID  string `json:"id"`
		Bin struct {
			ID string `json:"id"`
		} `json:"bin"`
	}
	if json.Unmarshal(body, &obj) != nil {
		return ""
	}
	if obj.ID != "" {
		return obj.ID
	}
	return obj.Bin.ID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
