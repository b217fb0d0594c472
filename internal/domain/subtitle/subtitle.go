// Package subtitle serializes captions to the SRT and WebVTT text formats.
// Both encoders are total over any caption slice, including empty; ordering
// and overlap are the caller's concern.
package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/eklimov/capvid/internal/types"
)

const (
	// SRTSeparator splits seconds from milliseconds in SRT timestamps.
	SRTSeparator = ','
	// VTTSeparator is the WebVTT equivalent.
	VTTSeparator = '.'
)

// ToSRT renders sequence-numbered SRT blocks separated by one blank line.
func ToSRT(caps []types.Caption) string {
	if len(caps) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range caps {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n",
			i+1,
			FormatTime(c.Start, SRTSeparator),
			FormatTime(c.End, SRTSeparator),
			cleanText(c.Text),
		)
	}
	return b.String()
}

// ToVTT renders a WebVTT document: header, blank line, then cue blocks
// using a period before the milliseconds.
func ToVTT(caps []types.Caption) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, c := range caps {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s --> %s\n%s",
			FormatTime(c.Start, VTTSeparator),
			FormatTime(c.End, VTTSeparator),
			cleanText(c.Text),
		)
	}
	return b.String()
}

// FormatTime renders seconds as HH:MM:SS<sep>mmm. The total is rounded to
// millisecond precision first, then each field is floored out of it.
func FormatTime(sec float64, sep byte) string {
	total := int64(math.Round(sec * 1000))
	if total < 0 {
		total = 0
	}
	ms := total % 1000
	s := (total / 1000) % 60
	m := (total / 60000) % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}

var timestampRE = regexp.MustCompile(`^(\d{2,}):([0-5]\d):([0-5]\d)[,.](\d{3})$`)

// ParseTime reads a subtitle timestamp in either the SRT or WebVTT form and
// returns seconds.
func ParseTime(s string) (float64, error) {
	m := timestampRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid subtitle timestamp %q", s)
	}
	h, _ := strconv.ParseInt(m[1], 10, 64)
	mi, _ := strconv.ParseInt(m[2], 10, 64)
	se, _ := strconv.ParseInt(m[3], 10, 64)
	ms, _ := strconv.ParseInt(m[4], 10, 64)
	total := h*3600000 + mi*60000 + se*1000 + ms
	return float64(total) / 1000, nil
}

// Validate is an optional pre-check for caller-supplied captions: text must
// be non-empty after trimming, timings must satisfy 0 <= start < end and
// must not be NaN. The encoders themselves never require it.
func Validate(caps []types.Caption) error {
	for i, c := range caps {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("caption %d: empty text", i+1)
		}
		if math.IsNaN(c.Start) || math.IsNaN(c.End) {
			return fmt.Errorf("caption %d: timing is NaN", i+1)
		}
		if c.Start < 0 {
			return fmt.Errorf("caption %d: negative start %v", i+1, c.Start)
		}
		if c.End <= c.Start {
			return fmt.Errorf("caption %d: end %v is not after start %v", i+1, c.End, c.Start)
		}
	}
	return nil
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r", ""))
}
