package types

// Caption is one timestamped text segment to display during playback.
// Times are seconds. Captions are ordered by Start and expected (not
// enforced) to be non-overlapping.
type Caption struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Word is a single transcript word with provider timing in milliseconds.
// EndMs == 0 means the provider did not report an end time.
type Word struct {
	Text     string
	StartMs  int64
	EndMs    int64
	Terminal bool // word ends a sentence (trailing . ! ?)
}

type Transcript struct {
	Text           string
	Words          []Word
	Language       string
	AudioLengthSec float64
}

// Style selects the caption layout used by the render backends.
type Style string

const (
	StyleBottom  Style = "bottom"
	StyleTop     Style = "top"
	StyleKaraoke Style = "karaoke"
)

func (s Style) Valid() bool {
	switch s {
	case StyleBottom, StyleTop, StyleKaraoke:
		return true
	}
	return false
}
