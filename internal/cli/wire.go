package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/eklimov/capvid/internal/config"
	"github.com/eklimov/capvid/internal/pipeline"
	"github.com/eklimov/capvid/internal/ports/adapters/assemblyai"
	"github.com/eklimov/capvid/internal/ports/adapters/ffmpeg"
	"github.com/eklimov/capvid/internal/ports/adapters/remotion"
	"github.com/eklimov/capvid/internal/source"
	"github.com/eklimov/capvid/internal/usecase"
)

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func buildTranscriber(cfg config.Config) (*assemblyai.Client, error) {
	if cfg.Transcriber.APIKey == "" {
		return nil, errors.New("ASSEMBLYAI_API_KEY is required (set it in .env or transcriber.api_key)")
	}
	c := assemblyai.New(cfg.Transcriber.APIKey, cfg.Transcriber.BaseURL)
	c.SetPolling(
		time.Duration(cfg.Transcriber.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Transcriber.PollTimeoutSeconds)*time.Second,
	)
	return c, nil
}

func buildPipeline(cfg config.Config, logf func(string, ...any)) (*pipeline.Pipeline, error) {
	tc, err := buildTranscriber(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Deps{
		Transcriber: tc,
		Prober:      ffmpeg.New(cfg.Render.FFmpegPath, cfg.Render.FFprobePath),
	}, pipeline.Config{
		TempRoot: cfg.Render.TempRoot,
		Logf:     logf,
	}), nil
}

func buildOrchestrator(cfg config.Config, logf func(string, ...any)) (*usecase.Orchestrator, error) {
	publicDir, err := cfg.PublicDirAbs()
	if err != nil {
		return nil, err
	}
	deps := usecase.Deps{
		Burner:   ffmpeg.New(cfg.Render.FFmpegPath, cfg.Render.FFprobePath),
		Resolver: source.NewResolver(),
	}
	if cfg.Render.CompositorEnabled {
		deps.Compositor = remotion.New(
			cfg.Render.RemotionLauncher,
			cfg.Render.RemotionEntry,
			cfg.Render.RemotionComposition,
		)
	}
	return usecase.New(deps, usecase.Config{
		PublicDir: publicDir,
		TempRoot:  cfg.Render.TempRoot,
		KeepTemp:  cfg.Render.KeepTemp,
		Logf:      logf,
	}), nil
}
