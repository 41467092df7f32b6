package transcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTargetVideoBitrate(t *testing.T) {
	assert := assert.New(t)

	// 49 MB over 10 minutes leaves plenty above the floor.
	target := int64(49 * 1024 * 1024)
	bps := TargetVideoBitrate(target, 10*time.Minute)
	assert.Equal(target*8/600-96_000, bps)
}

func TestTargetVideoBitrateClampsToFloor(t *testing.T) {
	assert := assert.New(t)

	// A very long video would need an absurdly low bitrate; clamp instead.
	bps := TargetVideoBitrate(49*1024*1024, 24*time.Hour)
	assert.Equal(int64(300_000), bps)
}

func TestTargetVideoBitrateReservesAudio(t *testing.T) {
	assert := assert.New(t)

	short := TargetVideoBitrate(10*1024*1024, time.Minute)
	withAudio := 10*1024*1024*8/60 - 96_000
	assert.Equal(int64(withAudio), short)
}

func TestLastLine(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("final", lastLine("first\nsecond\nfinal\n"))
	assert.Equal("only", lastLine("only"))
	assert.Equal("", lastLine(""))
}
