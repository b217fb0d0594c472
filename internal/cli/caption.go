package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/eklimov/capvid/internal/domain/subtitle"
	"github.com/eklimov/capvid/internal/pipeline"
)

func newCaptionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caption <media>",
		Short: "Transcribe a media file and emit captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCaption(cmd, args[0])
		},
	}
	cmd.Flags().String("format", "json", "Output format: json, srt or vtt")
	cmd.Flags().String("out", "", "Output file (default stdout)")
	return cmd
}

func runCaption(cmd *cobra.Command, input string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	if format != "json" && format != "srt" && format != "vtt" {
		return fmt.Errorf("unsupported format %q", format)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := buildPipeline(cfg, cmd.PrintErrf)
	if err != nil {
		return err
	}

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	f, err := os.Open(absIn)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	res, err := p.GenerateCaptions(ctx, f, filepath.Base(absIn))
	if err != nil {
		return err
	}

	var out []byte
	switch format {
	case "srt":
		out = []byte(subtitle.ToSRT(res.Captions))
	case "vtt":
		out = []byte(subtitle.ToVTT(res.Captions))
	default:
		out, err = json.MarshalIndent(captionOutput(res), "", "  ")
		if err != nil {
			return err
		}
		out = append(out, '\n')
	}

	if outPath == "" {
		cmd.Print(string(out))
		return nil
	}
	return os.WriteFile(outPath, out, 0o644)
}

func captionOutput(res pipeline.Result) any {
	return struct {
		Captions any    `json:"captions"`
		Language string `json:"language"`
		FullText string `json:"fullText"`
	}{res.Captions, res.Language, res.FullText}
}
