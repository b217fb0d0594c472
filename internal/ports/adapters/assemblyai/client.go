// Package assemblyai talks to the AssemblyAI speech-to-text API: raw media
// upload, transcript job creation, and status polling. The client never
// retries failed HTTP calls; stage errors carry the provider's status and
// body so the caller can decide.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eklimov/capvid/internal/domain/captions"
	"github.com/eklimov/capvid/internal/types"
)

const (
	DefaultBaseURL      = "https://api.assemblyai.com"
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

type Client struct {
	key     string
	baseURL string
	client  *http.Client

	interval time.Duration
	timeout  time.Duration

	// injectable for tests; polling must not depend on real time
	sleep func(time.Duration)
	now   func() time.Time
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		key:      apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Minute},
		interval: DefaultPollInterval,
		timeout:  DefaultPollTimeout,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// SetPolling overrides the poll interval and overall deadline.
func (c *Client) SetPolling(interval, timeout time.Duration) {
	if interval > 0 {
		c.interval = interval
	}
	if timeout > 0 {
		c.timeout = timeout
	}
}

// UploadError is a non-2xx response to the media upload.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("assemblyai upload failed: status %d: %s", e.Status, truncate(e.Body, 400))
}

// JobCreationError is a non-2xx response to transcript creation.
type JobCreationError struct {
	Status int
	Body   string
}

func (e *JobCreationError) Error() string {
	return fmt.Sprintf("assemblyai create transcript failed: status %d: %s", e.Status, truncate(e.Body, 400))
}

// TranscriptionError is a job that the provider finished with status "error".
type TranscriptionError struct {
	Message string
}

func (e *TranscriptionError) Error() string {
	return "transcript error: " + e.Message
}

// PollTimeoutError is a job still pending when the poll deadline elapsed.
type PollTimeoutError struct {
	Timeout time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("transcript polling timed out after %s", e.Timeout)
}

// Upload sends raw media bytes and returns the provider's upload URL.
func (c *Client) Upload(ctx context.Context, media io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", media)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

// CreateTranscript requests transcription of previously uploaded media and
// returns the job id.
func (c *Client) CreateTranscript(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &JobCreationError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("create response missing id")
	}
	return out.ID, nil
}

// PollUntilDone queries the job at a fixed interval until it completes,
// fails, or the deadline elapses. Each iteration sleeps for the interval;
// there is no busy spin.
func (c *Client) PollUntilDone(ctx context.Context, id string) (types.Transcript, error) {
	deadline := c.now().Add(c.timeout)
	for c.now().Before(deadline) {
		st, err := c.getTranscript(ctx, id)
		if err != nil {
			return types.Transcript{}, err
		}
		switch st.Status {
		case "completed":
			return st.toTranscript(), nil
		case "error":
			return types.Transcript{}, &TranscriptionError{Message: st.Error}
		}
		c.sleep(c.interval)
	}
	return types.Transcript{}, &PollTimeoutError{Timeout: c.timeout}
}

type transcriptStatus struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Text           string     `json:"text"`
	Error          string     `json:"error"`
	Language       string     `json:"language"`
	AudioLengthSec float64    `json:"audio_length_sec"`
	Words          []wireWord `json:"words"`
}

type wireWord struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

func (s transcriptStatus) toTranscript() types.Transcript {
	tr := types.Transcript{
		Text:           s.Text,
		Language:       s.Language,
		AudioLengthSec: s.AudioLengthSec,
	}
	for _, w := range s.Words {
		tr.Words = append(tr.Words, types.Word{
			Text:     w.Text,
			StartMs:  w.Start,
			EndMs:    w.End,
			Terminal: captions.EndsSentence(w.Text),
		})
	}
	return tr
}

func (c *Client) getTranscript(ctx context.Context, id string) (transcriptStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return transcriptStatus{}, err
	}
	req.Header.Set("Authorization", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return transcriptStatus{}, fmt.Errorf("poll transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transcriptStatus{}, fmt.Errorf("poll transcript: status %d: %s", resp.StatusCode, truncate(readBody(resp.Body), 400))
	}
	var st transcriptStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return transcriptStatus{}, fmt.Errorf("decode transcript status: %w", err)
	}
	return st, nil
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	return string(b)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
