package cli

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/eklimov/capvid/internal/pipeline"
	"github.com/eklimov/capvid/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the captioning HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := log.New(os.Stderr, "capvid ", log.LstdFlags)
	logf := logger.Printf

	// The transcriber is optional at serve time: render endpoints still work
	// without it, caption generation reports it unconfigured.
	var p *pipeline.Pipeline
	if cfg.Transcriber.APIKey != "" {
		if p, err = buildPipeline(cfg, logf); err != nil {
			return err
		}
	} else {
		logf("no transcriber API key; /api/captions/generate disabled")
	}

	orch, err := buildOrchestrator(cfg, logf)
	if err != nil {
		return err
	}
	publicDir, err := cfg.PublicDirAbs()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(publicDir, 0o755); err != nil {
		return fmt.Errorf("create exports dir: %w", err)
	}

	srv := server.New(p, orch, publicDir, logger)
	logf("listening on %s", cfg.Server.Bind)
	return http.ListenAndServe(cfg.Server.Bind, srv.Handler())
}
