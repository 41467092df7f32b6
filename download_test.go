package tgfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadSaveStream(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	var downloaded, expected int64
	d, err := NewDownloadBuilder().
		WithDir(dir).
		WithProgressCallback(func(down, exp int64) { downloaded, expected = down, exp }).
		Build()
	require.NoError(t, err)

	d.AddExpectedBytes(11)
	path, err := d.SaveStream("out.bin", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "out.bin"), path)
	assert.Equal(int64(11), downloaded)
	assert.Equal(int64(11), expected)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal("hello world", string(content))
}

func TestDownloadSaveURL(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	d, err := NewDownloadBuilder().WithDir(t.TempDir()).Build()
	require.NoError(t, err)
	path, err := d.SaveURL("remote.bin", srv.URL+"/remote.bin")
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal("payload", string(content))

	down, _ := d.Progress()
	assert.Equal(int64(7), down)
}

func TestDownloadSaveURLErrorStatus(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d, err := NewDownloadBuilder().WithDir(t.TempDir()).Build()
	require.NoError(t, err)
	_, err = d.SaveURL("remote.bin", srv.URL)
	assert.ErrorContains(err, "unexpected status")
}

func TestDownloadCancelledContext(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := NewDownloadBuilder().WithContext(ctx).WithDir(t.TempDir()).Build()
	require.NoError(t, err)
	_, err = d.SaveStream("out.bin", strings.NewReader("data"))
	assert.ErrorIs(err, context.Canceled)
}

func TestDownloadBuilderCreatesDir(t *testing.T) {
	assert := assert.New(t)
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	_, err := NewDownloadBuilder().WithDir(dir).Build()
	assert.NoError(err)
	assert.DirExists(dir)
}
