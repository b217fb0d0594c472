// Package config loads the capvid TOML configuration with defaults and
// environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Transcriber Transcriber `toml:"transcriber"`
	Render      Render      `toml:"render"`
	Server      Server      `toml:"server"`
}

type Transcriber struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PollTimeoutSeconds  int    `toml:"poll_timeout_seconds"`
}

type Render struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	// CompositorEnabled wires in the frame-composition backend. Disabling it
	// is a configuration-time choice; the runtime fallback from a failed
	// composite to subtitle burn is separate and always on.
	CompositorEnabled   bool   `toml:"compositor_enabled"`
	RemotionLauncher    string `toml:"remotion_launcher"`
	RemotionEntry       string `toml:"remotion_entry"`
	RemotionComposition string `toml:"remotion_composition"`
	PublicDir           string `toml:"public_dir"`
	TempRoot            string `toml:"temp_root"`
	// KeepTemp leaves per-job temp directories behind for inspection.
	KeepTemp bool `toml:"keep_temp"`
}

type Server struct {
	Bind string `toml:"bind"`
}

const (
	defaultBind                = "127.0.0.1:8494"
	defaultPublicDir           = "public/exports"
	defaultPollIntervalSeconds = 2
	defaultPollTimeoutSeconds  = 300
	defaultRemotionComposition = "Main"
)

func Default() Config {
	return Config{
		Transcriber: Transcriber{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			PollTimeoutSeconds:  defaultPollTimeoutSeconds,
		},
		Render: Render{
			CompositorEnabled:   true,
			RemotionComposition: defaultRemotionComposition,
			PublicDir:           defaultPublicDir,
		},
		Server: Server{Bind: defaultBind},
	}
}

// Load reads path (optional) over the defaults and applies environment
// overrides. A missing explicit path is an error; a missing default path is
// not.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = "capvid.toml"
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// defaults only
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ASSEMBLYAI_API_KEY"); v != "" {
		c.Transcriber.APIKey = v
	}
	if v := os.Getenv("ASSEMBLYAI_BASE_URL"); v != "" {
		c.Transcriber.BaseURL = v
	}
}

// Validate ensures the configuration is usable. Backend absence must be an
// explicit configuration choice, caught here rather than per request.
func (c *Config) Validate() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind is required")
	}
	if c.Transcriber.PollIntervalSeconds <= 0 {
		return errors.New("transcriber.poll_interval_seconds must be > 0")
	}
	if c.Transcriber.PollTimeoutSeconds <= 0 {
		return errors.New("transcriber.poll_timeout_seconds must be > 0")
	}
	if c.Render.PublicDir == "" {
		return errors.New("render.public_dir is required")
	}
	if c.Render.CompositorEnabled && c.Render.RemotionEntry == "" {
		return errors.New("render.remotion_entry is required when the compositor is enabled (set render.compositor_enabled = false to run burn-only)")
	}
	if c.Render.TempRoot != "" {
		if st, err := os.Stat(c.Render.TempRoot); err != nil || !st.IsDir() {
			return fmt.Errorf("render.temp_root %q is not a directory", c.Render.TempRoot)
		}
	}
	return nil
}

// PublicDirAbs resolves the exports directory against the working dir.
func (c *Config) PublicDirAbs() (string, error) {
	return filepath.Abs(c.Render.PublicDir)
}
