package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/internal/bulk"
)

func testConfig() tgfetch.Config {
	return tgfetch.DefaultConfig()
}

func TestParseGetCommand(t *testing.T) {
	assert := assert.New(t)

	opts, err := parseGetCommand("https://youtu.be/abc", testConfig())
	require.NoError(t, err)
	assert.Equal("https://youtu.be/abc", opts.URL)
	assert.Equal(tgfetch.ModeVideo, opts.Request.Mode)
	assert.Equal(480, opts.Request.MaxHeight)

	opts, err = parseGetCommand("https://youtu.be/abc audio", testConfig())
	require.NoError(t, err)
	assert.Equal(tgfetch.ModeAudio, opts.Request.Mode)

	opts, err = parseGetCommand("https://youtu.be/abc 720 video", testConfig())
	require.NoError(t, err)
	assert.Equal(tgfetch.ModeVideo, opts.Request.Mode)
	assert.Equal(720, opts.Request.MaxHeight)
}

func TestParseGetCommandErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := parseGetCommand("", testConfig())
	assert.ErrorContains(err, "usage:")

	_, err = parseGetCommand("https://youtu.be/abc hd", testConfig())
	assert.ErrorContains(err, "hd")

	_, err = parseGetCommand("https://youtu.be/abc 0", testConfig())
	assert.ErrorContains(err, "positive")
}

func TestParseGetAllCommandDefaults(t *testing.T) {
	assert := assert.New(t)

	opts, err := parseGetAllCommand("https://youtube.com/playlist?list=x", testConfig())
	require.NoError(t, err)
	assert.Equal(bulk.DeliverInline, opts.Mode)
	assert.Equal(bulk.SelectAll, opts.Selection.Kind)
	assert.Equal(10, opts.Selection.N)
	assert.Equal(tgfetch.ModeVideo, opts.Request.Mode)
}

func TestParseGetAllCommandZip(t *testing.T) {
	assert := assert.New(t)

	opts, err := parseGetAllCommand("url zip", testConfig())
	require.NoError(t, err)
	assert.Equal(bulk.DeliverSizeArchive, opts.Mode)

	opts, err = parseGetAllCommand("url zip=5", testConfig())
	require.NoError(t, err)
	assert.Equal(bulk.DeliverCountArchive, opts.Mode)

	_, err = parseGetAllCommand("url zip=0", testConfig())
	assert.Error(err)
}

func TestParseGetAllCommandLimit(t *testing.T) {
	assert := assert.New(t)

	opts, err := parseGetAllCommand("url limit=25", testConfig())
	require.NoError(t, err)
	assert.Equal(25, opts.Selection.N)

	opts, err = parseGetAllCommand("url limit=all", testConfig())
	require.NoError(t, err)
	assert.Equal(0, opts.Selection.N)

	_, err = parseGetAllCommand("url limit=soon", testConfig())
	assert.Error(err)
}

func TestParseGetAllCommandSelection(t *testing.T) {
	assert := assert.New(t)

	opts, err := parseGetAllCommand("url recent=5", testConfig())
	require.NoError(t, err)
	assert.Equal(bulk.SelectRecent, opts.Selection.Kind)
	assert.Equal(5, opts.Selection.N)

	opts, err = parseGetAllCommand("url top=3 audio", testConfig())
	require.NoError(t, err)
	assert.Equal(bulk.SelectTop, opts.Selection.Kind)
	assert.Equal(3, opts.Selection.N)
	assert.Equal(tgfetch.ModeAudio, opts.Request.Mode)

	_, err = parseGetAllCommand("url recent=-1", testConfig())
	assert.Error(err)

	_, err = parseGetAllCommand("url 0", testConfig())
	assert.ErrorContains(err, "positive")
}

func TestParseGetAllCommandUnknownOption(t *testing.T) {
	assert := assert.New(t)
	_, err := parseGetAllCommand("url shuffle", testConfig())
	assert.ErrorContains(err, "shuffle")
}

func TestFormatBytes(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("49.0 MB", formatBytes(49*1024*1024))
	assert.Equal("1.5 MB", formatBytes(3*1024*1024/2))
	assert.Equal("512 KB", formatBytes(512*1024))
}
