package playback

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/backend"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
)

const (
	// restartThreshold is how far into a track PlayPrevious restarts it instead of going back.
	restartThreshold = 3.0
	minRate          = 0.25
	maxRate          = 2.0
)

// Store is the part of the library the engine writes play timestamps and metadata to.
type Store interface {
	SaveTrack(ctx context.Context, track models.Track) bool
	GetTrack(ctx context.Context, id string) (*models.Track, bool)
}

// History records started tracks.
type History interface {
	Register(track models.Track)
	Snapshot() []models.Track
}

// EngineOpts configures an [Engine]. Backend is required.
type EngineOpts struct {
	Backend backend.Backend
	Store   Store
	History History
	Logger  *log.Logger
	Volume  float64          // initial volume, default 1
	Intn    func(n int) int  // shuffle source, default math/rand/v2
	Now     func() time.Time // last-played clock, default time.Now
}

// Engine is the playback state machine. A single goroutine owns the state: public methods
// submit commands to it and return once the command has been applied, and backend events are
// folded in by the same goroutine. No method returns an error; failures surface in
// [PlayerState.Error].
type Engine struct {
	backend backend.Backend
	store   Store
	history History
	logger  *log.Logger
	intn    func(int) int
	now     func() time.Time

	cmds      chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	snapshot  atomic.Pointer[PlayerState]

	// owned by the run loop
	state      PlayerState
	generation uint64
	cancelLoad context.CancelFunc
	subs       map[*Subscription]struct{}

	loadMu     sync.Mutex
	nextLoad   *loadRequest
	loadSignal chan struct{}
}

type loadRequest struct {
	ctx        context.Context
	track      models.Track
	generation uint64
}

// NewEngine starts an engine in the idle state.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Volume <= 0 || opts.Volume > 1 {
		opts.Volume = 1
	}

	e := &Engine{
		backend:    opts.Backend,
		store:      opts.Store,
		history:    opts.History,
		logger:     shared.WithLogger(opts.Logger, "component", "engine"),
		intn:       opts.Intn,
		now:        opts.Now,
		cmds:       make(chan func()),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		state:      initialState(opts.Volume),
		subs:       map[*Subscription]struct{}{},
		loadSignal: make(chan struct{}, 1),
	}

	if err := e.backend.SetVolume(opts.Volume); err != nil && !errors.Is(err, backend.ErrUnsupported) {
		e.logger.Warn("failed to set initial volume", "error", err)
	}
	snap := e.state.clone()
	e.snapshot.Store(&snap)

	go e.run()
	go e.loader()
	return e
}

// State returns the latest published snapshot.
func (e *Engine) State() PlayerState {
	return e.snapshot.Load().clone()
}

// Subscribe returns a subscription whose first value is the current state.
func (e *Engine) Subscribe() *Subscription {
	sub := newSubscription()
	ok := e.do(func() {
		e.subs[sub] = struct{}{}
		sub.push(e.state.clone())
	})
	if !ok {
		sub.Close()
	}
	return sub
}

// RecentlyPlayed returns the recently played tracks, most recent first.
func (e *Engine) RecentlyPlayed() []models.Track {
	if e.history == nil {
		return []models.Track{}
	}
	return e.history.Snapshot()
}

// PlayTrack plays track, adding it to the queue if it is not already there.
func (e *Engine) PlayTrack(track models.Track) { e.PlayTrackAt(track, true) }

// PlayTrackAt plays track. With enqueue false the queue and index are left untouched.
func (e *Engine) PlayTrackAt(track models.Track, enqueue bool) {
	track = track.Clone()
	e.do(func() { e.playTrack(track, enqueue) })
}

func (e *Engine) Pause()           { e.do(e.pause) }
func (e *Engine) Resume()          { e.do(e.resume) }
func (e *Engine) TogglePlayPause() { e.do(e.togglePlayPause) }
func (e *Engine) Stop()            { e.do(e.stop) }
func (e *Engine) PlayPrevious()    { e.do(e.playPrevious) }
func (e *Engine) ToggleMute()      { e.do(e.toggleMute) }

// PlayNext advances the queue. With loop false, running off the end stops playback.
func (e *Engine) PlayNext(loop bool) { e.do(func() { e.playNext(loop) }) }

// SeekTo moves the playhead, clamped to [0, duration].
func (e *Engine) SeekTo(position float64) { e.do(func() { e.seekTo(position) }) }

// SetQueue replaces the queue and, with autoPlay, starts the entry at start. Empty lists are ignored.
func (e *Engine) SetQueue(tracks []models.Track, start int, autoPlay bool) {
	tracks = models.CloneTracks(tracks)
	e.do(func() { e.setQueue(tracks, start, autoPlay) })
}

// AddToQueue appends tracks without touching the current entry.
func (e *Engine) AddToQueue(tracks []models.Track) {
	tracks = models.CloneTracks(tracks)
	e.do(func() { e.addToQueue(tracks) })
}

// SetVolume clamps level to [0, 1]. A zero level mutes; any other level unmutes.
func (e *Engine) SetVolume(level float64) { e.do(func() { e.setVolume(level) }) }

// SetPlaybackRate clamps rate to [0.25, 2]. Backends without rate control ignore it.
func (e *Engine) SetPlaybackRate(rate float64) { e.do(func() { e.setPlaybackRate(rate) }) }

func (e *Engine) ToggleShuffle() {
	e.do(func() { e.update(func(s *PlayerState) { s.Shuffle = !s.Shuffle }) })
}

func (e *Engine) SetShuffle(on bool) {
	e.do(func() { e.update(func(s *PlayerState) { s.Shuffle = on }) })
}

// CycleRepeatMode steps off -> all -> one -> off.
func (e *Engine) CycleRepeatMode() {
	e.do(func() { e.update(func(s *PlayerState) { s.Repeat = s.Repeat.next() }) })
}

func (e *Engine) SetRepeatMode(mode RepeatMode) {
	e.do(func() { e.update(func(s *PlayerState) { s.Repeat = mode }) })
}

// MergeMetadata folds a partial update into the stored track and into any in-memory copies.
func (e *Engine) MergeMetadata(u models.TrackUpdate) {
	e.do(func() { e.mergeMetadata(u) })
}

// Close stops playback and ends every subscription. The backend is left open for its owner.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.do(func() {
			e.halt()
			for sub := range e.subs {
				sub.Close()
			}
			e.subs = nil
		})
		close(e.quit)
		<-e.stopped
	})
}

// do runs fn on the engine goroutine and waits for it. It reports false once the engine is closed.
func (e *Engine) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(done) }:
	case <-e.quit:
		return false
	}

	select {
	case <-done:
		return true
	case <-e.stopped:
		return false
	}
}

// post queues fn on the engine goroutine without waiting.
func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.quit:
	}
}

func (e *Engine) run() {
	defer close(e.stopped)

	events := e.backend.Events()
	for {
		select {
		case <-e.quit:
			return
		case fn := <-e.cmds:
			fn()
		case ev := <-events:
			e.handleEvent(ev)
		}
	}
}

// loader performs backend loads off the engine goroutine. Only the newest request is served.
func (e *Engine) loader() {
	for {
		select {
		case <-e.quit:
			return
		case <-e.loadSignal:
		}

		e.loadMu.Lock()
		req := e.nextLoad
		e.nextLoad = nil
		e.loadMu.Unlock()
		if req == nil {
			continue
		}

		err := e.backend.Load(req.ctx, req.track, req.generation)
		e.post(func() { e.loaded(req.generation, err) })
	}
}

func (e *Engine) requestLoad(track models.Track) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelLoad = cancel

	e.loadMu.Lock()
	e.nextLoad = &loadRequest{ctx: ctx, track: track, generation: e.generation}
	e.loadMu.Unlock()

	select {
	case e.loadSignal <- struct{}{}:
	default:
	}
}

// publish stores the current state and fans it out to subscribers.
func (e *Engine) publish() {
	snap := e.state.clone()
	e.snapshot.Store(&snap)

	for sub := range e.subs {
		if sub.closed() {
			delete(e.subs, sub)
			continue
		}
		sub.push(e.state.clone())
	}
}

func (e *Engine) update(fn func(s *PlayerState)) {
	fn(&e.state)
	e.publish()
}

// halt supersedes the current load and silences the backend.
func (e *Engine) halt() {
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	e.generation++
	if err := e.backend.Stop(); err != nil {
		e.logger.Debug("backend stop failed", "error", err)
	}
}

func (e *Engine) playTrack(track models.Track, enqueue bool) {
	e.halt()

	current := track.Clone()
	e.state.CurrentTrack = &current
	e.state.Loading = true
	e.state.Playing = false
	e.state.Error = ""
	e.state.Position = 0
	e.state.Duration = track.DurationSeconds()

	if e.history != nil {
		e.history.Register(track)
	}

	if enqueue {
		idx := indexOf(e.state.Queue, track.ID)
		if idx < 0 {
			e.state.Queue = append(e.state.Queue, track.Clone())
			idx = len(e.state.Queue) - 1
		}
		e.state.QueueIndex = idx
	}
	e.publish()

	e.touch(track)
	e.logger.Debug("loading", "track", track.ID, "generation", e.generation)
	e.requestLoad(track)
}

// touch persists the last-played timestamp. Failures are logged by the store.
func (e *Engine) touch(track models.Track) {
	if e.store == nil {
		return
	}
	played := e.now()
	track.LastPlayed = &played
	if !e.store.SaveTrack(context.Background(), track) {
		e.logger.Debug("last played not recorded", "track", track.ID)
	}
}

func (e *Engine) loaded(generation uint64, err error) {
	if generation != e.generation {
		return
	}
	// A successful load keeps its context: streamed sources read from it during playback.
	// halt cancels it when the track is superseded or stopped.
	if err != nil {
		if e.cancelLoad != nil {
			e.cancelLoad()
			e.cancelLoad = nil
		}
		e.fail(err.Error())
		return
	}
	if err := e.backend.Play(); err != nil {
		e.fail(err.Error())
	}
}

func (e *Engine) fail(reason string) {
	e.logger.Warn("playback failed", "error", reason)
	e.state.Loading = false
	e.state.Playing = false
	e.state.Error = reason
	e.publish()
}

func (e *Engine) handleEvent(ev backend.Event) {
	if ev.Generation != e.generation || e.state.CurrentTrack == nil {
		e.logger.Debug("dropping stale event", "event", ev.Type, "generation", ev.Generation)
		return
	}

	switch ev.Type {
	case backend.EventStarted:
		e.state.Loading = false
		e.state.Playing = true
		e.state.Error = ""
		e.learnDuration(ev.Duration)
	case backend.EventTimeUpdated:
		e.state.Position = ev.Position
		e.learnDuration(ev.Duration)
	case backend.EventErrored:
		e.fail(ev.Reason)
		return
	case backend.EventEnded:
		e.state.Playing = false
		e.publish()
		e.handleEnded()
		return
	}
	e.publish()
}

// learnDuration records a duration reported by the backend. A track stored without one gets it
// merged into the library so later listings and queues know its length.
func (e *Engine) learnDuration(d float64) {
	if d <= 0 {
		return
	}
	e.state.Duration = d
	if t := e.state.CurrentTrack; t != nil && t.Duration == nil {
		e.mergeMetadata(models.TrackUpdate{ID: t.ID, Duration: models.Seconds(d)})
	}
}

func (e *Engine) handleEnded() {
	switch e.state.Repeat {
	case RepeatOne:
		if e.state.CurrentTrack != nil {
			e.playTrack(*e.state.CurrentTrack, false)
		}
	case RepeatAll:
		e.playNext(true)
	default:
		e.playNext(false)
	}
}

func (e *Engine) playNext(loop bool) {
	n := len(e.state.Queue)
	if n == 0 {
		return
	}

	idx, ok := nextIndex(e.state.QueueIndex, n, e.state.Shuffle, loop, e.intn)
	if !ok {
		e.stop()
		return
	}
	e.state.QueueIndex = idx
	e.playTrack(e.state.Queue[idx], false)
}

func (e *Engine) playPrevious() {
	n := len(e.state.Queue)
	if n == 0 {
		return
	}
	if e.state.Position > restartThreshold {
		e.seekTo(0)
		return
	}

	idx := previousIndex(e.state.QueueIndex, n, e.state.Shuffle, e.intn)
	e.state.QueueIndex = idx
	e.playTrack(e.state.Queue[idx], false)
}

func (e *Engine) pause() {
	if !e.state.Playing {
		return
	}
	if err := e.backend.Pause(); err != nil {
		e.logger.Debug("backend pause failed", "error", err)
	}
	e.state.Playing = false
	e.publish()
}

// resume continues a paused track. A track in the error state is reloaded from the start.
func (e *Engine) resume() {
	if e.state.Playing || e.state.Loading || e.state.CurrentTrack == nil {
		return
	}
	if e.state.Error != "" {
		e.playTrack(*e.state.CurrentTrack, false)
		return
	}
	if err := e.backend.Play(); err != nil {
		e.fail(err.Error())
		return
	}
	e.state.Playing = true
	e.publish()
}

func (e *Engine) togglePlayPause() {
	if e.state.CurrentTrack == nil {
		return
	}
	if e.state.Playing {
		e.pause()
	} else {
		e.resume()
	}
}

func (e *Engine) stop() {
	e.halt()
	e.state.Playing = false
	e.state.Loading = false
	e.state.Position = 0
	e.state.Duration = 0
	e.state.CurrentTrack = nil
	e.publish()
}

// seekTo clamps to [0, duration]; with an unknown duration only the lower bound applies.
func (e *Engine) seekTo(position float64) {
	if e.state.CurrentTrack == nil {
		return
	}
	if position < 0 {
		position = 0
	}
	if e.state.Duration > 0 && position > e.state.Duration {
		position = e.state.Duration
	}

	if err := e.backend.Seek(position); err != nil {
		e.logger.Debug("backend seek failed", "error", err)
		if errors.Is(err, backend.ErrUnsupported) || errors.Is(err, backend.ErrNotLoaded) {
			return
		}
	}
	e.state.Position = position
	e.publish()
}

func (e *Engine) setQueue(tracks []models.Track, start int, autoPlay bool) {
	if len(tracks) == 0 {
		return
	}
	if start < 0 || start >= len(tracks) {
		start = 0
	}

	e.state.Queue = tracks
	e.state.QueueIndex = start
	e.publish()

	if autoPlay {
		e.playTrack(tracks[start], false)
	}
}

func (e *Engine) addToQueue(tracks []models.Track) {
	if len(tracks) == 0 {
		return
	}
	e.state.Queue = append(e.state.Queue, tracks...)
	if e.state.QueueIndex < 0 {
		e.state.QueueIndex = 0
	}
	e.publish()
}

func (e *Engine) setVolume(level float64) {
	level = clamp(level, 0, 1)
	if err := e.backend.SetVolume(level); err != nil && !errors.Is(err, backend.ErrUnsupported) {
		e.logger.Debug("backend volume failed", "error", err)
	}
	e.state.Volume = level
	e.state.Muted = level == 0
	e.publish()
}

// toggleMute keeps Volume as the level to restore; unmuting from zero restores full volume.
func (e *Engine) toggleMute() {
	if e.state.Muted {
		level := e.state.Volume
		if level <= 0 {
			level = 1
		}
		e.setVolume(level)
		return
	}

	if err := e.backend.SetVolume(0); err != nil && !errors.Is(err, backend.ErrUnsupported) {
		e.logger.Debug("backend volume failed", "error", err)
	}
	e.state.Muted = true
	e.publish()
}

func (e *Engine) setPlaybackRate(rate float64) {
	rate = clamp(rate, minRate, maxRate)
	if err := e.backend.SetRate(rate); err != nil {
		if errors.Is(err, backend.ErrUnsupported) {
			return
		}
		e.logger.Debug("backend rate failed", "error", err)
	}
	e.state.Rate = rate
	e.publish()
}

func (e *Engine) mergeMetadata(u models.TrackUpdate) {
	if u.ID == "" {
		return
	}

	if e.store != nil {
		ctx := context.Background()
		if stored, ok := e.store.GetTrack(ctx, u.ID); ok && u.Apply(stored) {
			e.store.SaveTrack(ctx, *stored)
		}
	}

	changed := false
	if t := e.state.CurrentTrack; t != nil && t.ID == u.ID && u.Apply(t) {
		changed = true
		if d := t.DurationSeconds(); d > 0 && e.state.Duration == 0 {
			e.state.Duration = d
		}
	}
	for i := range e.state.Queue {
		if e.state.Queue[i].ID == u.ID && u.Apply(&e.state.Queue[i]) {
			changed = true
		}
	}
	if changed {
		e.publish()
	}
}
