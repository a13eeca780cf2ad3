package backend

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
)

const (
	resampleQuality = 4
	progressPerSec  = 4
)

// SpeakerOpts configures the direct-decode backend.
type SpeakerOpts struct {
	SampleRate int           // output rate, default 44100
	Buffer     time.Duration // speaker buffer, default 100ms
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Speaker decodes audio in-process with beep and plays it on the default output device.
//
// Pipeline per track: decoder -> resampler (device rate x playback rate) -> volume -> progress -> ctrl.
type Speaker struct {
	sampleRate beep.SampleRate
	client     *http.Client
	logger     *log.Logger
	events     *emitter

	mu         sync.Mutex
	generation uint64
	source     beep.StreamSeekCloser
	format     beep.Format
	resampler  *beep.Resampler
	volume     *effects.Volume
	ctrl       *beep.Ctrl
	started    bool
	level      float64
	rate       float64
}

// NewSpeaker initializes the audio device. It fails when no output device can be opened.
func NewSpeaker(opts SpeakerOpts) (*Speaker, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 100 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	sr := beep.SampleRate(opts.SampleRate)
	if err := speaker.Init(sr, sr.N(opts.Buffer)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	return &Speaker{
		sampleRate: sr,
		client:     opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "backend", "backend", "speaker"),
		events:     newEmitter(64),
		level:      1,
		rate:       1,
	}, nil
}

func (s *Speaker) Load(ctx context.Context, track models.Track, generation uint64) error {
	s.Stop()

	rc, contentType, err := openLocator(ctx, s.client, track.URL)
	if err != nil {
		return unplayable(track, err)
	}

	source, format, err := decode(rc, resolveFormat(track, contentType))
	if err != nil {
		return unplayable(track, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation = generation
	s.source = source
	s.format = format
	s.started = false

	s.resampler = beep.ResampleRatio(resampleQuality, s.ratio(), source)
	s.volume = &effects.Volume{Streamer: s.resampler, Base: 2}
	applyLevel(s.volume, s.level)

	p := &progress{
		streamer: s.volume,
		every:    s.sampleRate.N(time.Second / progressPerSec),
		tick:     s.tickFunc(generation, source, format),
	}
	s.ctrl = &beep.Ctrl{Streamer: p, Paused: true}

	speaker.Play(beep.Seq(s.ctrl, beep.Callback(func() {
		go s.finished(generation)
	})))

	s.logger.Debug("loaded", "track", track.ID, "sample_rate", format.SampleRate, "generation", generation)
	return nil
}

func (s *Speaker) Play() error {
	s.mu.Lock()
	if s.ctrl == nil {
		s.mu.Unlock()
		return ErrNotLoaded
	}

	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()

	first := !s.started
	s.started = true
	ev := Event{Type: EventStarted, Generation: s.generation, Duration: s.duration()}
	s.mu.Unlock()

	if first {
		s.events.send(ev)
	}
	return nil
}

func (s *Speaker) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return ErrNotLoaded
	}

	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

func (s *Speaker) Stop() error {
	speaker.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source != nil {
		if err := s.source.Close(); err != nil {
			s.logger.Debug("close source", "error", err)
		}
	}
	s.source, s.resampler, s.volume, s.ctrl = nil, nil, nil, nil
	s.started = false
	return nil
}

func (s *Speaker) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return ErrNotLoaded
	}

	n := s.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if l := s.source.Len(); l > 0 && n >= l {
		n = l - 1
	}
	if n < 0 {
		n = 0
	}

	speaker.Lock()
	err := s.source.Seek(n)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("%w: seek: %v", ErrUnsupported, err)
	}

	s.events.offer(Event{
		Type:       EventTimeUpdated,
		Generation: s.generation,
		Position:   s.format.SampleRate.D(n).Seconds(),
		Duration:   s.duration(),
	})
	return nil
}

func (s *Speaker) SetVolume(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.level = level
	if s.volume != nil {
		speaker.Lock()
		applyLevel(s.volume, level)
		speaker.Unlock()
	}
	return nil
}

func (s *Speaker) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rate = rate
	if s.resampler != nil {
		speaker.Lock()
		s.resampler.SetRatio(s.ratio())
		speaker.Unlock()
	}
	return nil
}

func (s *Speaker) Events() <-chan Event { return s.events.ch }

func (s *Speaker) Capabilities() Capabilities {
	return Capabilities{Name: "speaker", Rate: true, Seek: true, Volume: true}
}

// Close stops playback and releases the output device.
func (s *Speaker) Close() error {
	s.Stop()
	s.events.close()
	speaker.Close()
	return nil
}

// ratio converts source samples to device samples at the current playback rate; callers hold s.mu.
func (s *Speaker) ratio() float64 {
	if s.format.SampleRate == 0 {
		return s.rate
	}
	return float64(s.format.SampleRate) / float64(s.sampleRate) * s.rate
}

// duration returns the decoded length in seconds, or 0 for unbounded streams; callers hold s.mu.
func (s *Speaker) duration() float64 {
	if s.source == nil || s.source.Len() <= 0 {
		return 0
	}
	return s.format.SampleRate.D(s.source.Len()).Seconds()
}

// tickFunc reports the source position. It runs on the audio goroutine with the speaker lock held.
func (s *Speaker) tickFunc(generation uint64, source beep.StreamSeeker, format beep.Format) func() {
	var length float64
	if source.Len() > 0 {
		length = format.SampleRate.D(source.Len()).Seconds()
	}
	return func() {
		s.events.offer(Event{
			Type:       EventTimeUpdated,
			Generation: generation,
			Position:   format.SampleRate.D(source.Position()).Seconds(),
			Duration:   length,
		})
	}
}

func (s *Speaker) finished(generation uint64) {
	s.mu.Lock()
	current := s.generation == generation && s.source != nil
	var err error
	if current {
		err = s.source.Err()
	}
	s.mu.Unlock()

	if !current {
		return
	}
	if err != nil {
		s.events.send(Event{Type: EventErrored, Generation: generation, Reason: err.Error()})
		return
	}
	s.events.send(Event{Type: EventEnded, Generation: generation})
}

// applyLevel maps a linear level in [0, 1] onto effects.Volume's base-2 exponent.
func applyLevel(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}

// progress counts device samples and calls tick every `every` samples.
type progress struct {
	streamer beep.Streamer
	every    int
	count    int
	tick     func()
}

func (p *progress) Stream(samples [][2]float64) (int, bool) {
	n, ok := p.streamer.Stream(samples)
	p.count += n
	if p.every > 0 && p.count >= p.every {
		p.count %= p.every
		p.tick()
	}
	return n, ok
}

func (p *progress) Err() error { return p.streamer.Err() }
