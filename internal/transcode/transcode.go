// Package transcode shells out to ffprobe/ffmpeg to measure media files and
// re-encode video down to a byte budget.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrNotSmaller = errors.New("transcode did not produce a smaller file")

const (
	// minVideoBitrate is the floor below which the target bitrate is clamped.
	minVideoBitrate = 300_000
	audioBitrate    = 96_000
	// fallbackCRF is used for the single-pass encode when duration is unknown.
	fallbackCRF = 28
)

// Estimate is what Probe learns about a local media file.
type Estimate struct {
	SizeBytes int64
	// Duration is zero when ffprobe could not determine it.
	Duration time.Duration
}

// Probe stats the file and asks ffprobe for its duration.
func Probe(ctx context.Context, path string) (Estimate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Estimate{}, fmt.Errorf("failed to stat media file: %w", err)
	}
	e := Estimate{SizeBytes: info.Size()}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		// Duration is best-effort; the caller falls back to single-pass.
		zap.S().Named("transcode").Debugw("ffprobe failed", "path", path, "err", err)
		return e, nil
	}
	if seconds, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64); err == nil && seconds > 0 {
		e.Duration = time.Duration(seconds * float64(time.Second))
	}
	return e, nil
}

// TargetVideoBitrate computes the video bitrate (bits per second) that
// should land a file of the given duration at targetBytes, reserving the
// audio bitrate and never going below the floor.
func TargetVideoBitrate(targetBytes int64, duration time.Duration) int64 {
	targetBits := targetBytes * 8
	bps := int64(float64(targetBits)/duration.Seconds()) - audioBitrate
	if bps < minVideoBitrate {
		return minVideoBitrate
	}
	return bps
}

// Shrink re-encodes in to out aiming at targetBytes, capping the video
// height. When the input duration is unknown it falls back to a single-pass
// constant-quality encode. Returns ErrNotSmaller when the result is no
// improvement over the input.
func Shrink(ctx context.Context, in, out string, targetBytes int64, maxHeight int) error {
	log := zap.S().Named("transcode")

	est, err := Probe(ctx, in)
	if err != nil {
		return err
	}

	var args []string
	if est.Duration > 0 {
		vbps := TargetVideoBitrate(targetBytes, est.Duration)
		log.Infow("shrinking by bitrate", "in", in, "target_bytes", targetBytes, "video_bps", vbps)
		args = []string{
			"-y", "-i", in,
			"-vf", fmt.Sprintf("scale=-2:%d", maxHeight),
			"-c:v", "libx264", "-preset", "veryfast",
			"-b:v", strconv.FormatInt(vbps, 10),
			"-maxrate", strconv.FormatInt(vbps*12/10, 10),
			"-bufsize", strconv.FormatInt(vbps*2, 10),
			"-c:a", "aac", "-b:a", strconv.FormatInt(audioBitrate, 10),
			"-movflags", "+faststart",
			out,
		}
	} else {
		log.Infow("shrinking single-pass, duration unknown", "in", in)
		args = []string{
			"-y", "-i", in,
			"-vf", fmt.Sprintf("scale=-2:%d", maxHeight),
			"-c:v", "libx264", "-preset", "veryfast", "-crf", strconv.Itoa(fallbackCRF),
			"-c:a", "aac", "-b:a", strconv.FormatInt(audioBitrate, 10),
			"-movflags", "+faststart",
			out,
		}
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}

	outInfo, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if outInfo.Size() >= est.SizeBytes {
		return ErrNotSmaller
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
