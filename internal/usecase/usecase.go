// Package usecase orchestrates one captioned-video render: resolve the
// video source into a private job directory, run the frame-composition
// backend, and fall back to the subtitle-burn backend when compositing
// fails. The two backends produce different success shapes on purpose:
// compositing hands back a local file to stream, burning publishes into the
// exports directory and hands back a URL.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/eklimov/capvid/internal/domain/subtitle"
	"github.com/eklimov/capvid/internal/ports"
	"github.com/eklimov/capvid/internal/source"
	"github.com/eklimov/capvid/internal/types"
)

type Deps struct {
	// Compositor may be nil when the operator disabled the frame-composition
	// backend at configuration time; Run then goes straight to the burn path.
	Compositor ports.FrameCompositor
	Burner     ports.SubtitleBurner
	Resolver   *source.Resolver
}

type Config struct {
	// PublicDir receives burn-path outputs; PublicBase is the URL prefix
	// they are served under.
	PublicDir  string
	PublicBase string
	// TempRoot hosts per-attempt job directories. Defaults to os.TempDir().
	TempRoot string
	// KeepTemp leaves job directories behind for inspection.
	KeepTemp bool
	Logf     func(format string, args ...any)
}

type Orchestrator struct {
	d   Deps
	cfg Config
}

func New(d Deps, cfg Config) *Orchestrator {
	if cfg.TempRoot == "" {
		cfg.TempRoot = os.TempDir()
	}
	if cfg.PublicBase == "" {
		cfg.PublicBase = "/exports"
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	return &Orchestrator{d: d, cfg: cfg}
}

// Job parameterizes exactly one render attempt.
type Job struct {
	Captions []types.Caption
	Source   string
	Style    types.Style
	FPS      int
	Width    int
	Height   int
}

func (j *Job) normalize() {
	if !j.Style.Valid() {
		j.Style = types.StyleBottom
	}
	if j.FPS <= 0 {
		j.FPS = 30
	}
	if j.Width <= 0 {
		j.Width = 1280
	}
	if j.Height <= 0 {
		j.Height = 720
	}
}

type OutcomeKind int

const (
	// OutcomeStream is a local MP4 to stream back to the caller.
	OutcomeStream OutcomeKind = iota
	// OutcomeURL is a published file addressed by URL.
	OutcomeURL
)

// Outcome is the result of a successful render. Stream outcomes keep their
// file inside the job directory; Close releases it once the bytes have been
// delivered. URL outcomes own nothing and Close is a no-op.
type Outcome struct {
	Kind              OutcomeKind
	FilePath          string
	Size              int64
	Filename          string
	URL               string
	CaptionsProcessed int

	cleanup func()
}

func (o *Outcome) Close() {
	if o.cleanup != nil {
		o.cleanup()
		o.cleanup = nil
	}
}

// Run drives the preference-ordered delivery flow: frame composite first,
// subtitle burn as a complete fallback. Only both paths failing is an
// error, and it names both stages.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Outcome, error) {
	if o.d.Compositor == nil {
		o.cfg.Logf("frame compositor not configured, using subtitle burn")
		return o.Burn(ctx, job)
	}
	out, compErr := o.Composite(ctx, job)
	if compErr == nil {
		return out, nil
	}
	o.cfg.Logf("frame composite failed, falling back to subtitle burn: %v", compErr)
	out, burnErr := o.Burn(ctx, job)
	if burnErr != nil {
		return nil, fmt.Errorf("render failed: frame composite: %v; subtitle burn: %w", compErr, burnErr)
	}
	return out, nil
}

// Composite runs the frame-composition path and returns a streamable file.
func (o *Orchestrator) Composite(ctx context.Context, job Job) (*Outcome, error) {
	if o.d.Compositor == nil {
		return nil, errors.New("frame compositor is not configured")
	}
	job.normalize()
	dir, cleanup, err := o.newJobDir("capvid-composite-")
	if err != nil {
		return nil, err
	}
	delivered := false
	defer func() {
		if !delivered {
			cleanup()
		}
	}()

	videoPath, err := o.resolveSource(ctx, job.Source, dir)
	if err != nil {
		return nil, err
	}
	serveURL, err := o.d.Compositor.Bundle(ctx, dir)
	if err != nil {
		return nil, err
	}
	outPath := filepath.Join(dir, "out.mp4")
	if err := o.d.Compositor.Render(ctx, serveURL, ports.CompositeJob{
		Captions:  job.Captions,
		VideoPath: videoPath,
		Style:     job.Style,
		FPS:       job.FPS,
		Width:     job.Width,
		Height:    job.Height,
	}, outPath); err != nil {
		return nil, err
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("stat render output: %w", err)
	}

	delivered = true
	return &Outcome{
		Kind:              OutcomeStream,
		FilePath:          outPath,
		Size:              st.Size(),
		Filename:          "video-with-captions.mp4",
		CaptionsProcessed: len(job.Captions),
		cleanup:           cleanup,
	}, nil
}

// Burn runs the subtitle-burn path: serialize captions to SRT, re-encode
// through the external transcoder, publish the output under an
// attempt-unique name, and return its URL.
func (o *Orchestrator) Burn(ctx context.Context, job Job) (*Outcome, error) {
	if o.d.Burner == nil {
		return nil, errors.New("subtitle burner is not configured")
	}
	job.normalize()
	dir, cleanup, err := o.newJobDir("capvid-burn-")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	videoPath, err := o.resolveSource(ctx, job.Source, dir)
	if err != nil {
		return nil, err
	}
	srtPath := filepath.Join(dir, "captions.srt")
	if err := os.WriteFile(srtPath, []byte(subtitle.ToSRT(job.Captions)), 0o644); err != nil {
		return nil, fmt.Errorf("write subtitle file: %w", err)
	}
	outPath := filepath.Join(dir, "output.mp4")
	if err := o.d.Burner.Burn(ctx, videoPath, srtPath, outPath, job.Style); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(o.cfg.PublicDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports dir: %w", err)
	}
	name := exportName(time.Now())
	if err := moveFile(outPath, filepath.Join(o.cfg.PublicDir, name)); err != nil {
		return nil, fmt.Errorf("publish render output: %w", err)
	}
	return &Outcome{
		Kind:              OutcomeURL,
		URL:               o.cfg.PublicBase + "/" + name,
		CaptionsProcessed: len(job.Captions),
	}, nil
}

func (o *Orchestrator) resolveSource(ctx context.Context, raw string, dir string) (string, error) {
	ref, err := source.Parse(raw)
	if err != nil {
		return "", &source.PreparationError{Source: raw, Err: err}
	}
	resolver := o.d.Resolver
	if resolver == nil {
		resolver = source.NewResolver()
	}
	return resolver.Resolve(ctx, ref, dir)
}

// newJobDir creates a fresh private directory for one attempt. Attempts
// never share mutable state; the returned cleanup honors KeepTemp.
func (o *Orchestrator) newJobDir(prefix string) (string, func(), error) {
	dir := filepath.Join(o.cfg.TempRoot, prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create job dir: %w", err)
	}
	cleanup := func() {
		if o.cfg.KeepTemp {
			o.cfg.Logf("keeping job dir for inspection: %s", dir)
			return
		}
		_ = os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func exportName(now time.Time) string {
	return fmt.Sprintf("video-with-captions-%s-%s.mp4",
		now.UTC().Format("20060102-150405"),
		uuid.NewString()[:8],
	)
}

// moveFile renames, falling back to copy+delete across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
