// Package source normalizes the three accepted video source shapes (remote
// URL, absolute filesystem path, file:// URI) into a local file inside a
// job's working directory. The shape is decided once at parse time, never
// re-sniffed downstream.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

type Kind int

const (
	KindRemote Kind = iota
	KindLocalPath
	KindFileURI
)

// Ref is a parsed video source. Exactly one of URL or Path is set,
// depending on Kind.
type Ref struct {
	Kind Kind
	URL  string
	Path string
}

// PreparationError wraps any failure to turn a source reference into a
// usable local file: missing local files, failed downloads, copy errors.
type PreparationError struct {
	Source string
	Err    error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("prepare video source %q: %v", e.Source, e.Err)
}

func (e *PreparationError) Unwrap() error { return e.Err }

var (
	winAbsRE      = regexp.MustCompile(`^[A-Za-z]:\\`)
	driveAfterURI = regexp.MustCompile(`^/[A-Za-z]:/`)
)

// Parse classifies a raw video source string.
func Parse(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}, errors.New("empty video source")
	}
	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return Ref{Kind: KindRemote, URL: s}, nil
	case strings.HasPrefix(s, "file://"):
		p := strings.TrimPrefix(s, "file://")
		// file:///C:/... keeps a slash before the drive letter
		if driveAfterURI.MatchString(p) {
			p = p[1:]
		}
		p = filepath.FromSlash(p)
		return Ref{Kind: KindFileURI, Path: p}, nil
	case winAbsRE.MatchString(s) || filepath.IsAbs(s):
		return Ref{Kind: KindLocalPath, Path: s}, nil
	}
	return Ref{}, fmt.Errorf("unsupported video source %q", raw)
}

// Resolver copies or downloads a parsed source into a job directory.
type Resolver struct {
	Client *http.Client
}

func NewResolver() *Resolver {
	return &Resolver{Client: &http.Client{Timeout: 10 * time.Minute}}
}

// Resolve materializes ref as a file under dir and returns its path. Local
// sources are copied so the job never depends on a path outside its own
// directory; remote sources are fully downloaded.
func (r *Resolver) Resolve(ctx context.Context, ref Ref, dir string) (string, error) {
	switch ref.Kind {
	case KindRemote:
		dest := filepath.Join(dir, "input.mp4")
		if err := r.download(ctx, ref.URL, dest); err != nil {
			return "", &PreparationError{Source: ref.URL, Err: err}
		}
		return dest, nil
	default:
		if _, err := os.Stat(ref.Path); err != nil {
			return "", &PreparationError{Source: ref.Path, Err: fmt.Errorf("local file not found: %w", err)}
		}
		dest := filepath.Join(dir, filepath.Base(ref.Path))
		if err := copyFile(ref.Path, dest); err != nil {
			return "", &PreparationError{Source: ref.Path, Err: err}
		}
		return dest, nil
	}
}

func (r *Resolver) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
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
	return out.Close()
}
