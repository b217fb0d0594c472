// Package remotion drives the Remotion frame-composition renderer through
// its CLI. Bundling and rendering are separate sub-stages with separate
// error types so the orchestrator can report which one fell over before it
// falls back to the subtitle-burn path.
package remotion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eklimov/capvid/internal/ports"
)

type Adapter struct {
	launcher    string
	entry       string
	composition string
}

// New builds an adapter around an npx-compatible launcher. entry is the
// composition entry point; composition is the registered composition id.
func New(launcher, entry, composition string) *Adapter {
	if launcher == "" {
		launcher = "npx"
	}
	if composition == "" {
		composition = "Main"
	}
	return &Adapter{launcher: launcher, entry: entry, composition: composition}
}

type BundlingError struct {
	Output string
	Err    error
}

func (e *BundlingError) Error() string {
	return fmt.Sprintf("remotion bundling failed: %v: %s", e.Err, tail(e.Output, 400))
}

func (e *BundlingError) Unwrap() error { return e.Err }

type RenderError struct {
	Output string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("remotion render failed: %v: %s", e.Err, tail(e.Output, 400))
}

func (e *RenderError) Unwrap() error { return e.Err }

// Bundle compiles the composition entry into a servable bundle under
// workDir and returns its location.
func (a *Adapter) Bundle(ctx context.Context, workDir string) (string, error) {
	outDir := filepath.Join(workDir, "bundle")
	cmd := exec.CommandContext(ctx, a.launcher, "remotion", "bundle", a.entry, "--out-dir", outDir)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return "", &BundlingError{Output: string(b), Err: err}
	}
	return outDir, nil
}

// Render invokes the renderer against a bundled composition, producing an
// MP4 at outPath. Input props are passed through a JSON file next to the
// output.
func (a *Adapter) Render(ctx context.Context, serveURL string, job ports.CompositeJob, outPath string) error {
	props := map[string]any{
		"captions": job.Captions,
		"videoUrl": fileURL(job.VideoPath),
		"style":    job.Style,
		"fps":      job.FPS,
		"width":    job.Width,
		"height":   job.Height,
	}
	pb, err := json.Marshal(props)
	if err != nil {
		return &RenderError{Err: fmt.Errorf("marshal props: %w", err)}
	}
	propsPath := filepath.Join(filepath.Dir(outPath), "props.json")
	if err := os.WriteFile(propsPath, pb, 0o644); err != nil {
		return &RenderError{Err: err}
	}
	args := renderArgs(serveURL, a.composition, outPath, propsPath, job)
	cmd := exec.CommandContext(ctx, a.launcher, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return &RenderError{Output: string(b), Err: err}
	}
	return nil
}

func renderArgs(serveURL, composition, outPath, propsPath string, job ports.CompositeJob) []string {
	return []string{
		"remotion", "render",
		serveURL,
		composition,
		outPath,
		"--props", propsPath,
		"--codec", "h264",
		"--fps", strconv.Itoa(job.FPS),
		"--width", strconv.Itoa(job.Width),
		"--height", strconv.Itoa(job.Height),
		"--overwrite",
	}
}

func fileURL(p string) string {
	if p == "" {
		return ""
	}
	s := filepath.ToSlash(p)
	if !strings.HasPrefix(s, "/") {
		// windows drive paths need a separating slash
		s = "/" + s
	}
	return "file://" + s
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
