package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eklimov/capvid/internal/types"
	"github.com/eklimov/capvid/internal/usecase"
)

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <video>",
		Short: "Render a captioned video from a caption file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0])
		},
	}
	cmd.Flags().String("captions", "", "Caption JSON file (required)")
	cmd.Flags().String("style", string(types.StyleBottom), "Caption style: bottom, top or karaoke")
	cmd.Flags().String("mode", "auto", "Render mode: auto, composite or burn")
	cmd.Flags().String("out", "", "Destination for streamed composite output")
	cmd.Flags().Int("fps", 0, "Output frames per second")
	cmd.Flags().Int("width", 0, "Output width")
	cmd.Flags().Int("height", 0, "Output height")
	_ = cmd.MarkFlagRequired("captions")
	return cmd
}

func runRender(cmd *cobra.Command, video string) error {
	capsPath, _ := cmd.Flags().GetString("captions")
	styleStr, _ := cmd.Flags().GetString("style")
	mode, _ := cmd.Flags().GetString("mode")
	outPath, _ := cmd.Flags().GetString("out")
	fps, _ := cmd.Flags().GetInt("fps")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	orch, err := buildOrchestrator(cfg, cmd.PrintErrf)
	if err != nil {
		return err
	}

	caps, err := readCaptions(capsPath)
	if err != nil {
		return err
	}

	job := usecase.Job{
		Captions: caps,
		Source:   normalizeVideoArg(video),
		Style:    types.Style(styleStr),
		FPS:      fps,
		Width:    width,
		Height:   height,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Hour)
	defer cancel()

	var out *usecase.Outcome
	switch mode {
	case "auto":
		out, err = orch.Run(ctx, job)
	case "composite":
		out, err = orch.Composite(ctx, job)
	case "burn":
		out, err = orch.Burn(ctx, job)
	default:
		return fmt.Errorf("unsupported mode %q", mode)
	}
	if err != nil {
		return err
	}
	defer out.Close()

	if out.Kind == usecase.OutcomeURL {
		cmd.Printf("published: %s (%d captions)\n", out.URL, out.CaptionsProcessed)
		return nil
	}
	if outPath == "" {
		outPath = out.Filename
	}
	if err := copyFile(out.FilePath, outPath); err != nil {
		return fmt.Errorf("save render output: %w", err)
	}
	cmd.Printf("wrote %s (%d bytes, %d captions)\n", outPath, out.Size, out.CaptionsProcessed)
	return nil
}

func readCaptions(path string) ([]types.Caption, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var caps []types.Caption
	if err := json.Unmarshal(b, &caps); err != nil {
		// also accept the caption command's JSON envelope
		var wrapped struct {
			Captions []types.Caption `json:"captions"`
		}
		if err2 := json.Unmarshal(b, &wrapped); err2 != nil || wrapped.Captions == nil {
			return nil, fmt.Errorf("parse captions %s: %w", path, err)
		}
		caps = wrapped.Captions
	}
	return caps, nil
}

// normalizeVideoArg lets plain relative paths work from the shell; URLs and
// absolute forms pass through to the source parser untouched.
func normalizeVideoArg(v string) string {
	if strings.Contains(v, "://") || filepath.IsAbs(v) {
		return v
	}
	if abs, err := filepath.Abs(v); err == nil {
		return abs
	}
	return v
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
