package ports

import (
	"context"
	"io"
	"time"

	"github.com/eklimov/capvid/internal/types"
)

// Transcriber is the speech-to-text provider contract: upload raw media,
// create a transcription job, then block-poll it to completion.
type Transcriber interface {
	Upload(ctx context.Context, media io.Reader) (string, error)
	CreateTranscript(ctx context.Context, audioURL string) (string, error)
	PollUntilDone(ctx context.Context, id string) (types.Transcript, error)
}

// CompositeJob parameterizes one frame-composition render.
type CompositeJob struct {
	Captions  []types.Caption
	VideoPath string
	Style     types.Style
	FPS       int
	Width     int
	Height    int
}

// FrameCompositor produces a captioned MP4 by compositing text overlays
// per output frame. Bundling and rendering fail independently; both are
// fatal for this path and leave fallback to the caller.
type FrameCompositor interface {
	Bundle(ctx context.Context, workDir string) (string, error)
	Render(ctx context.Context, serveURL string, job CompositeJob, outPath string) error
}

// SubtitleBurner re-encodes a video with a subtitle file rasterized into
// the pixel data.
type SubtitleBurner interface {
	Burn(ctx context.Context, videoPath, subtitlePath, outPath string, style types.Style) error
}

// DurationProber reports the playable length of a local media file.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}
