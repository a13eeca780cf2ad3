package backend

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/shared"
)

const (
	KindAuto    = "auto"
	KindSpeaker = "speaker"
	KindMPD     = "mpd"
	KindNull    = "null"
)

// Select builds the backend named by player.Backend. "auto" prefers the local speaker, then an
// MPD server, and falls back to [Null] when neither is reachable.
func Select(player shared.PlayerConfig, server shared.MPDConfig, logger *log.Logger) (Backend, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	speakerOpts := SpeakerOpts{
		SampleRate: player.SampleRate,
		Buffer:     time.Duration(player.BufferMS) * time.Millisecond,
		Logger:     logger,
	}
	mpdOpts := MPDOpts{
		Network:      server.Network,
		Address:      server.Address,
		Password:     server.Password,
		PollInterval: time.Duration(player.PollIntervalMS) * time.Millisecond,
		Logger:       logger,
	}

	switch player.Backend {
	case KindSpeaker:
		return NewSpeaker(speakerOpts)
	case KindMPD:
		return DialMPD(mpdOpts)
	case KindNull:
		return NewNull(0), nil
	case KindAuto, "":
		s, err := NewSpeaker(speakerOpts)
		if err == nil {
			return s, nil
		}
		logger.Warn("audio device unavailable", "error", err)

		m, err := DialMPD(mpdOpts)
		if err == nil {
			return m, nil
		}
		logger.Warn("mpd unavailable, playback will be silent", "error", err)
		return NewNull(0), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", shared.ErrInvalidConfig, player.Backend)
	}
}
