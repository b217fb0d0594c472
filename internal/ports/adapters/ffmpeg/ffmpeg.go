package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eklimov/capvid/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// TranscodeError is a subtitle-burn run that exited non-zero. The exit code
// is the sole failure signal; captured output is diagnostics only.
type TranscodeError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("ffmpeg subtitle burn exited with code %d: %s", e.ExitCode, tail(e.Output, 400))
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Burn re-encodes the video with the subtitle file rendered into the pixel
// data. The audio stream is copied untouched.
func (a *Adapter) Burn(ctx context.Context, videoPath, subtitlePath, outPath string, style types.Style) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", burnFilter(subtitlePath, style),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-c:a", "copy",
		outPath,
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &TranscodeError{ExitCode: code, Output: out.String(), Err: err}
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func burnFilter(subtitlePath string, style types.Style) string {
	return "subtitles='" + escapeFilterPath(subtitlePath) + "':force_style='" + forceStyle(style) + "'"
}

func forceStyle(style types.Style) string {
	const base = "FontName=DejaVuSans,FontSize=36"
	// ASS numpad alignment: 2 = bottom center, 8 = top center. Karaoke layout
	// is a frame-composite feature; the burn path renders it bottom-aligned.
	if style == types.StyleTop {
		return base + ",Alignment=8"
	}
	return base + ",Alignment=2"
}

func escapeFilterPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
