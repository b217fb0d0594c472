package captions

import (
	"math"
	"strings"

	"github.com/eklimov/capvid/internal/types"
)

// Options control the segmentation thresholds. The defaults are what reads
// comfortably on screen; treat them as tunable, not load-bearing.
type Options struct {
	// MaxWordsPerCaption closes a word group when it reaches this size.
	MaxWordsPerCaption int
	// ChunkWords is the fixed chunk size for the plain-text fallback.
	ChunkWords int
	// MinChunkSec floors the estimated duration of a fallback chunk.
	MinChunkSec float64
	// MissingEndPadMs is added to a word's start when a group closes on a
	// word that has no end time.
	MissingEndPadMs int64
	// MissingTailPadMs is the same fallback for the trailing partial group.
	MissingTailPadMs int64
	// DefaultDurationSec is assumed when the provider reports no media length.
	DefaultDurationSec float64
}

func DefaultOptions() Options {
	return Options{
		MaxWordsPerCaption: 10,
		ChunkWords:         8,
		MinChunkSec:        1.5,
		MissingEndPadMs:    500,
		MissingTailPadMs:   1000,
		DefaultDurationSec: 60,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxWordsPerCaption <= 0 {
		o.MaxWordsPerCaption = def.MaxWordsPerCaption
	}
	if o.ChunkWords <= 0 {
		o.ChunkWords = def.ChunkWords
	}
	if o.MinChunkSec <= 0 {
		o.MinChunkSec = def.MinChunkSec
	}
	if o.MissingEndPadMs <= 0 {
		o.MissingEndPadMs = def.MissingEndPadMs
	}
	if o.MissingTailPadMs <= 0 {
		o.MissingTailPadMs = def.MissingTailPadMs
	}
	if o.DefaultDurationSec <= 0 {
		o.DefaultDurationSec = def.DefaultDurationSec
	}
	return o
}

// Build converts a transcript into captions. Word-level grouping is used
// when the provider returned timed words; when that yields nothing and the
// transcript still carries raw text, the fixed-chunk fallback spreads the
// text over the reported media duration.
func Build(tr types.Transcript, opts Options) []types.Caption {
	opts = opts.withDefaults()
	caps := GroupWords(tr.Words, opts)
	if len(caps) > 0 {
		return caps
	}
	if strings.TrimSpace(tr.Text) == "" {
		return nil
	}
	dur := tr.AudioLengthSec
	if dur <= 0 {
		dur = opts.DefaultDurationSec
	}
	return ChunkText(tr.Text, dur, opts)
}

// GroupWords accumulates timed words into captions. A group closes when it
// holds MaxWordsPerCaption words or when the just-added word ends a
// sentence, whichever comes first. A trailing partial group is flushed with
// the longer end-time fallback.
func GroupWords(words []types.Word, opts Options) []types.Caption {
	opts = opts.withDefaults()
	var out []types.Caption
	var current []string
	var startMs int64
	for _, w := range words {
		if len(current) == 0 {
			startMs = w.StartMs
		}
		current = append(current, w.Text)
		if len(current) >= opts.MaxWordsPerCaption || w.Terminal {
			endMs := w.EndMs
			if endMs == 0 {
				endMs = w.StartMs + opts.MissingEndPadMs
			}
			out = append(out, types.Caption{
				Text:  strings.Join(current, " "),
				Start: msToSec(startMs),
				End:   msToSec(endMs),
			})
			current = nil
		}
	}
	if len(current) > 0 {
		last := words[len(words)-1]
		endMs := last.EndMs
		if endMs == 0 {
			endMs = last.StartMs + opts.MissingTailPadMs
		}
		out = append(out, types.Caption{
			Text:  strings.Join(current, " "),
			Start: msToSec(startMs),
			End:   msToSec(endMs),
		})
	}
	return out
}

// ChunkText splits plain text into fixed-size chunks laid out back-to-back
// from t=0. Each chunk gets a proportional share of the total duration,
// floored so degenerate inputs keep a readable on-screen time.
func ChunkText(text string, totalDurationSec float64, opts Options) []types.Caption {
	opts = opts.withDefaults()
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	est := (float64(opts.ChunkWords) / math.Max(1, float64(len(words)))) * totalDurationSec
	if est < opts.MinChunkSec {
		est = opts.MinChunkSec
	}
	var out []types.Caption
	start := 0.0
	for i := 0; i < len(words); i += opts.ChunkWords {
		end := i + opts.ChunkWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, types.Caption{
			Text:  strings.Join(words[i:end], " "),
			Start: roundMs(start),
			End:   roundMs(start + est),
		})
		start += est
	}
	return out
}

// EndsSentence reports whether a word carries terminal punctuation once
// trailing quotes and brackets are peeled off.
func EndsSentence(word string) bool {
	s := strings.TrimSpace(word)
	const trimTail = `"'` + "`" + ")]}"
	for len(s) > 0 && strings.ContainsRune(trimTail, rune(s[len(s)-1])) {
		s = s[:len(s)-1]
	}
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func msToSec(ms int64) float64 { return float64(ms) / 1000 }

func roundMs(sec float64) float64 { return math.Round(sec*1000) / 1000 }
