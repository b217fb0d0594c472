// Package pipeline runs the caption-generation flow: persist the uploaded
// media locally, hand it to the speech-to-text provider, block on the
// transcription job, and segment the transcript into captions.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eklimov/capvid/internal/domain/captions"
	"github.com/eklimov/capvid/internal/ports"
	"github.com/eklimov/capvid/internal/types"
)

type Deps struct {
	Transcriber ports.Transcriber
	// Prober is optional; when set it backfills a media duration for the
	// fixed-chunk fallback if the provider did not report one.
	Prober ports.DurationProber
}

type Config struct {
	// TempRoot hosts per-upload directories. Defaults to os.TempDir().
	TempRoot string
	Segment  captions.Options
	Logf     func(format string, args ...any)
}

type Pipeline struct {
	d   Deps
	cfg Config
}

func New(d Deps, cfg Config) *Pipeline {
	if cfg.TempRoot == "" {
		cfg.TempRoot = os.TempDir()
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	return &Pipeline{d: d, cfg: cfg}
}

// Result carries everything the caller needs to edit and later render:
// the captions, the provider's upload URL (usable as a remote source) and
// the server-local copy of the media (usable as a local source).
type Result struct {
	Captions  []types.Caption `json:"captions"`
	Language  string          `json:"language"`
	FullText  string          `json:"fullText"`
	UploadURL string          `json:"uploadUrl"`
	LocalPath string          `json:"localFilePath"`
}

// GenerateCaptions ingests one media stream. Transcription-stage errors
// abort the flow and surface verbatim; there is no caption data to proceed
// with without them.
func (p *Pipeline) GenerateCaptions(ctx context.Context, media io.Reader, filename string) (Result, error) {
	dir, err := os.MkdirTemp(p.cfg.TempRoot, "capvid-upload-")
	if err != nil {
		return Result{}, fmt.Errorf("create upload dir: %w", err)
	}
	localPath := filepath.Join(dir, sanitizeFilename(filename))
	if err := writeStream(localPath, media); err != nil {
		return Result{}, fmt.Errorf("save upload: %w", err)
	}
	p.cfg.Logf("saved upload to %s", localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return Result{}, err
	}
	uploadURL, err := p.d.Transcriber.Upload(ctx, f)
	f.Close()
	if err != nil {
		return Result{}, err
	}
	p.cfg.Logf("uploaded media: %s", uploadURL)

	id, err := p.d.Transcriber.CreateTranscript(ctx, uploadURL)
	if err != nil {
		return Result{}, err
	}
	p.cfg.Logf("transcript job: %s", id)

	tr, err := p.d.Transcriber.PollUntilDone(ctx, id)
	if err != nil {
		return Result{}, err
	}

	if tr.AudioLengthSec <= 0 && p.d.Prober != nil {
		if d, probeErr := p.d.Prober.ProbeDuration(ctx, localPath); probeErr == nil {
			tr.AudioLengthSec = d.Seconds()
		}
	}

	caps := captions.Build(tr, p.cfg.Segment)
	p.cfg.Logf("segmented %d words into %d captions", len(tr.Words), len(caps))

	// fall back to script-based detection when the provider reports nothing
	lang := tr.Language
	if lang == "" {
		lang = captions.DetectLanguage(caps)
	}
	return Result{
		Captions:  caps,
		Language:  lang,
		FullText:  fullText(tr),
		UploadURL: uploadURL,
		LocalPath: localPath,
	}, nil
}

func fullText(tr types.Transcript) string {
	if tr.Text != "" {
		return tr.Text
	}
	parts := make([]string, 0, len(tr.Words))
	for _, w := range tr.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "._")
	if s == "" {
		s = fmt.Sprintf("upload-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
	}
	return s
}

func writeStream(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
