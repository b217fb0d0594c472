package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eklimov/capvid/internal/ports"
	"github.com/eklimov/capvid/internal/types"
)

type fakeCompositor struct {
	bundleErr error
	renderErr error
	lastJob   ports.CompositeJob
}

func (f *fakeCompositor) Bundle(_ context.Context, workDir string) (string, error) {
	if f.bundleErr != nil {
		return "", f.bundleErr
	}
	return filepath.Join(workDir, "bundle"), nil
}

func (f *fakeCompositor) Render(_ context.Context, _ string, job ports.CompositeJob, outPath string) error {
	if f.renderErr != nil {
		return f.renderErr
	}
	f.lastJob = job
	return os.WriteFile(outPath, []byte("composited-mp4"), 0o644)
}

type fakeBurner struct {
	err      error
	srtBody  string
	style    types.Style
	srcVideo string
}

func (f *fakeBurner) Burn(_ context.Context, videoPath, subtitlePath, outPath string, style types.Style) error {
	if f.err != nil {
		return f.err
	}
	b, err := os.ReadFile(subtitlePath)
	if err != nil {
		return err
	}
	f.srtBody = string(b)
	f.style = style
	f.srcVideo = videoPath
	return os.WriteFile(outPath, []byte("burned-mp4"), 0o644)
}

func testVideo(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(p, []byte("source-video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testJob(t *testing.T) Job {
	return Job{
		Captions: []types.Caption{
			{Text: "Hello world.", Start: 0, End: 0.9},
			{Text: "Second.", Start: 1, End: 2},
		},
		Source: testVideo(t),
	}
}

func newTestOrchestrator(t *testing.T, d Deps) (*Orchestrator, string) {
	t.Helper()
	publicDir := filepath.Join(t.TempDir(), "exports")
	o := New(d, Config{
		PublicDir: publicDir,
		TempRoot:  t.TempDir(),
	})
	return o, publicDir
}

func TestRun_CompositePreferred(t *testing.T) {
	comp := &fakeCompositor{}
	o, _ := newTestOrchestrator(t, Deps{Compositor: comp, Burner: &fakeBurner{}})

	out, err := o.Run(context.Background(), testJob(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeStream {
		t.Fatalf("expected stream outcome, got %v", out.Kind)
	}
	if out.Size != int64(len("composited-mp4")) {
		t.Fatalf("unexpected size: %d", out.Size)
	}
	if out.CaptionsProcessed != 2 {
		t.Fatalf("unexpected captions processed: %d", out.CaptionsProcessed)
	}
	// defaults flow through to the compositor
	if comp.lastJob.FPS != 30 || comp.lastJob.Width != 1280 || comp.lastJob.Height != 720 {
		t.Fatalf("job defaults not applied: %+v", comp.lastJob)
	}
	if comp.lastJob.Style != types.StyleBottom {
		t.Fatalf("style default not applied: %v", comp.lastJob.Style)
	}

	dir := filepath.Dir(out.FilePath)
	if _, err := os.Stat(out.FilePath); err != nil {
		t.Fatalf("stream file missing before Close: %v", err)
	}
	out.Close()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("job dir not cleaned after Close: %v", err)
	}
}

func TestRun_FallsBackToBurn(t *testing.T) {
	burner := &fakeBurner{}
	o, publicDir := newTestOrchestrator(t, Deps{
		Compositor: &fakeCompositor{bundleErr: errors.New("bundling failed")},
		Burner:     burner,
	})

	out, err := o.Run(context.Background(), testJob(t))
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if out.Kind != OutcomeURL {
		t.Fatalf("expected URL outcome, got %v", out.Kind)
	}
	if !strings.HasPrefix(out.URL, "/exports/video-with-captions-") || !strings.HasSuffix(out.URL, ".mp4") {
		t.Fatalf("unexpected export URL: %q", out.URL)
	}
	published := filepath.Join(publicDir, strings.TrimPrefix(out.URL, "/exports/"))
	b, err := os.ReadFile(published)
	if err != nil || string(b) != "burned-mp4" {
		t.Fatalf("published file mismatch: %q, %v", b, err)
	}
	if !strings.Contains(burner.srtBody, "00:00:00,000 --> 00:00:00,900") {
		t.Fatalf("burner did not receive SRT: %q", burner.srtBody)
	}
}

func TestRun_BothPathsFail(t *testing.T) {
	o, _ := newTestOrchestrator(t, Deps{
		Compositor: &fakeCompositor{renderErr: errors.New("render blew up")},
		Burner:     &fakeBurner{err: errors.New("exit status 1")},
	})

	_, err := o.Run(context.Background(), testJob(t))
	if err == nil {
		t.Fatal("expected error when both paths fail")
	}
	msg := err.Error()
	if !strings.Contains(msg, "render blew up") || !strings.Contains(msg, "exit status 1") {
		t.Fatalf("error must name both stages: %q", msg)
	}
}

func TestRun_NoCompositorGoesStraightToBurn(t *testing.T) {
	burner := &fakeBurner{}
	o, _ := newTestOrchestrator(t, Deps{Burner: burner})

	out, err := o.Run(context.Background(), testJob(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeURL {
		t.Fatalf("expected URL outcome, got %v", out.Kind)
	}
	if burner.srcVideo == "" {
		t.Fatal("burner never invoked")
	}
}

func TestBurn_ResolvesSourceIntoJobDir(t *testing.T) {
	burner := &fakeBurner{}
	o, _ := newTestOrchestrator(t, Deps{Burner: burner})
	job := testJob(t)
	job.Style = types.StyleTop

	if _, err := o.Burn(context.Background(), job); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if burner.srcVideo == job.Source {
		t.Fatal("burner saw the original path, not the job copy")
	}
	if burner.style != types.StyleTop {
		t.Fatalf("style not forwarded: %v", burner.style)
	}
	// job dir is gone after the attempt
	if _, err := os.Stat(filepath.Dir(burner.srcVideo)); !os.IsNotExist(err) {
		t.Fatalf("job dir not cleaned: %v", err)
	}
}

func TestBurn_SourcePreparationFailure(t *testing.T) {
	o, _ := newTestOrchestrator(t, Deps{Burner: &fakeBurner{}})
	job := testJob(t)
	job.Source = filepath.Join(t.TempDir(), "missing.mp4")

	_, err := o.Burn(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "prepare video source") {
		t.Fatalf("expected source preparation error, got %v", err)
	}
}

func TestKeepTemp_LeavesJobDir(t *testing.T) {
	burner := &fakeBurner{}
	tempRoot := t.TempDir()
	o := New(Deps{Burner: burner}, Config{
		PublicDir: filepath.Join(t.TempDir(), "exports"),
		TempRoot:  tempRoot,
		KeepTemp:  true,
	})

	if _, err := o.Burn(context.Background(), testJob(t)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(burner.srcVideo)); err != nil {
		t.Fatalf("expected job dir kept: %v", err)
	}
}

func TestExportNamesAreAttemptUnique(t *testing.T) {
	burner := &fakeBurner{}
	o, _ := newTestOrchestrator(t, Deps{Burner: burner})

	first, err := o.Burn(context.Background(), testJob(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Burn(context.Background(), testJob(t))
	if err != nil {
		t.Fatal(err)
	}
	if first.URL == second.URL {
		t.Fatalf("expected unique export names, got %q twice", first.URL)
	}
}
