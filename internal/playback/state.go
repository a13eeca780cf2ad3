package playback

import (
	"fmt"
	"strings"

	"github.com/desertthunder/melodify/internal/models"
)

// RepeatMode selects the end-of-track policy.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// ParseRepeatMode accepts "off", "all" and "one".
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatOff, fmt.Errorf("unknown repeat mode %q", s)
	}
}

func (m RepeatMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *RepeatMode) UnmarshalText(b []byte) error {
	v, err := ParseRepeatMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// next returns the mode after m in the off -> all -> one cycle.
func (m RepeatMode) next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// Status names the conceptual state a snapshot is in.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusError   Status = "error"
)

// PlayerState is an immutable snapshot of the engine. Every snapshot handed out owns its
// CurrentTrack and Queue.
type PlayerState struct {
	Playing      bool           `json:"isPlaying"`
	CurrentTrack *models.Track  `json:"currentTrack"`
	Position     float64        `json:"currentTime"`
	Duration     float64        `json:"duration"`
	Volume       float64        `json:"volume"`
	Muted        bool           `json:"isMuted"`
	Loading      bool           `json:"isLoading"`
	Error        string         `json:"error,omitempty"`
	Rate         float64        `json:"playbackRate"`
	Repeat       RepeatMode     `json:"repeatMode"`
	Shuffle      bool           `json:"shuffleMode"`
	Queue        []models.Track `json:"queue"`
	QueueIndex   int            `json:"queueIndex"`
}

func initialState(volume float64) PlayerState {
	return PlayerState{
		Volume:     volume,
		Rate:       1,
		Queue:      []models.Track{},
		QueueIndex: -1,
	}
}

// Status derives the conceptual state from the snapshot's flags.
func (s PlayerState) Status() Status {
	switch {
	case s.CurrentTrack == nil:
		return StatusIdle
	case s.Error != "":
		return StatusError
	case s.Loading:
		return StatusLoading
	case s.Playing:
		return StatusPlaying
	default:
		return StatusPaused
	}
}

func (s PlayerState) clone() PlayerState {
	out := s
	if s.CurrentTrack != nil {
		t := s.CurrentTrack.Clone()
		out.CurrentTrack = &t
	}
	out.Queue = models.CloneTracks(s.Queue)
	if out.Queue == nil {
		out.Queue = []models.Track{}
	}
	return out
}
