package util

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestFilenameFromURL(t *testing.T) {
	assert := assert.New(t)

	name, err := FilenameFromURL(mustParse(t, "https://example.com/files/video.mp4"))
	assert.NoError(err)
	assert.Equal("video.mp4", name)

	name, err = FilenameFromURL(mustParse(t, "https://example.com/files/video.mp4?token=abc"))
	assert.NoError(err)
	assert.Equal("video.mp4", name)

	for _, s := range []string{
		"https://example.com/",
		"https://example.com",
		"https://example.com/files/..",
	} {
		_, err = FilenameFromURL(mustParse(t, s))
		assert.ErrorIs(err, ErrNoFilename, "url %s", s)
	}

	_, err = FilenameFromURL(nil)
	assert.ErrorIs(err, ErrNoFilename)
}
