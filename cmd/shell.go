package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/playback"
	"github.com/desertthunder/melodify/internal/repositories"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/urfave/cli/v3"
)

var errQuit = errors.New("quit")

// listings print their own output instead of the status line.
var listings = map[string]bool{"help": true, "?": true, "ls": true, "recent": true, "lists": true, "queue": true}

const shellHelp = `Commands:
  ls [query]            list library tracks
  recent                list recently played tracks
  lists                 list playlists
  load <playlist-id>    queue a playlist and start playing
  play <n|track-id>     play a listed track
  add <n|track-id>      append a listed track to the queue
  queue                 show the queue
  p | pause | resume    toggle, pause or resume
  stop | next | prev    transport
  seek <seconds>        jump within the current track
  vol <0-100>           set volume
  mute                  toggle mute
  rate <0.25-2>         set playback rate
  shuffle [on|off]      toggle or set shuffle
  repeat [off|all|one]  cycle or set repeat mode
  like                  like the current track
  status                show the player state
  quit                  leave the shell`

// shell interprets one line at a time against a playback engine.
type shell struct {
	engine  *playback.Engine
	store   *repositories.Store
	out     io.Writer
	results []models.Track // last listing, addressed by 1-based index
}

// Shell runs an interactive prompt driving the player. Logs go to log.file, or to a rotated file
// in the user cache directory, so they do not interleave with the prompt.
func (r *Runner) Shell(ctx context.Context, cmd *cli.Command) error {
	logConf := r.config.Log
	if logConf.File == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		logConf.File = filepath.Join(dir, "melodify", "shell.log")
	}
	fileLogger, closer, err := shared.NewFileLogger(logConf)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()
	r.logger = fileLogger

	engine, err := r.player(ctx)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "melodify> ",
		HistoryFile:     filepath.Join(filepath.Dir(logConf.File), "shell_history"),
		AutoComplete:    shellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           r.input,
		Stdout:          r.output,
	})
	if err != nil {
		return fmt.Errorf("failed to start prompt: %w", err)
	}
	defer rl.Close()

	sh := &shell{engine: engine, store: store, out: rl.Stdout()}

	sub := engine.Subscribe()
	defer sub.Close()
	go sh.announce(sub.States())

	if id := cmd.String("playlist"); id != "" {
		if err := sh.exec(ctx, "load "+id); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}

	fmt.Fprintln(sh.out, "Type help for commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			return nil
		}

		switch err := sh.exec(ctx, line); {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("ls"), readline.PcItem("recent"), readline.PcItem("lists"),
		readline.PcItem("load"), readline.PcItem("play"), readline.PcItem("add"),
		readline.PcItem("queue"), readline.PcItem("pause"), readline.PcItem("resume"),
		readline.PcItem("stop"), readline.PcItem("next"), readline.PcItem("prev"),
		readline.PcItem("seek"), readline.PcItem("vol"), readline.PcItem("mute"),
		readline.PcItem("rate"), readline.PcItem("like"), readline.PcItem("status"),
		readline.PcItem("shuffle", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("repeat", readline.PcItem("off"), readline.PcItem("all"), readline.PcItem("one")),
		readline.PcItem("help"), readline.PcItem("quit"),
	)
}

// announce prints track changes and playback errors as they are published.
func (s *shell) announce(states <-chan playback.PlayerState) {
	var lastID, lastErr string
	for state := range states {
		if state.CurrentTrack != nil && state.CurrentTrack.ID != lastID {
			lastID = state.CurrentTrack.ID
			fmt.Fprintf(s.out, "♪ %s - %s\n", state.CurrentTrack.Artist, state.CurrentTrack.Title)
		}
		if state.Error != "" && state.Error != lastErr {
			fmt.Fprintf(s.out, "playback error: %s\n", state.Error)
		}
		lastErr = state.Error
	}
}

// exec runs a single command line. It returns errQuit when the shell should exit.
func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	arg := strings.Join(args, " ")

	switch name {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "quit", "exit", "q":
		return errQuit
	case "ls":
		criteria := map[string]any{}
		if arg != "" {
			criteria["query"] = arg
		}
		s.list(s.store.FindTracks(ctx, criteria))
	case "recent":
		s.list(s.engine.RecentlyPlayed())
	case "lists":
		for _, p := range s.store.GetAllPlaylists(ctx) {
			fmt.Fprintf(s.out, "  %s  %s [%d tracks]\n", p.ID, p.Name, len(p.Tracks))
		}
	case "load":
		if arg == "" {
			return fmt.Errorf("%w: load <playlist-id>", shared.ErrMissingArgument)
		}
		if _, ok := s.store.GetPlaylist(ctx, arg); !ok {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, arg)
		}
		tracks := s.store.GetPlaylistTracks(ctx, arg)
		if len(tracks) == 0 {
			return fmt.Errorf("%w: playlist %s is empty", shared.ErrInvalidInput, arg)
		}
		s.engine.SetQueue(tracks, 0, true)
	case "play":
		if arg == "" {
			s.engine.Resume()
			break
		}
		track, err := s.resolve(ctx, arg)
		if err != nil {
			return err
		}
		s.engine.PlayTrack(track)
	case "add":
		track, err := s.resolve(ctx, arg)
		if err != nil {
			return err
		}
		s.engine.AddToQueue([]models.Track{track})
		fmt.Fprintf(s.out, "queued %s\n", track.Title)
	case "queue":
		state := s.engine.State()
		for i, t := range state.Queue {
			marker := " "
			if i == state.QueueIndex {
				marker = ">"
			}
			fmt.Fprintf(s.out, "%s %3d. %s - %s\n", marker, i+1, t.Artist, t.Title)
		}
	case "p", "toggle":
		s.engine.TogglePlayPause()
	case "pause":
		s.engine.Pause()
	case "resume":
		s.engine.Resume()
	case "stop":
		s.engine.Stop()
	case "next", "n":
		s.engine.PlayNext(true)
	case "prev", "previous":
		s.engine.PlayPrevious()
	case "seek":
		v, err := parseNumber(arg, "seek <seconds>")
		if err != nil {
			return err
		}
		s.engine.SeekTo(v)
	case "vol", "volume":
		v, err := parseNumber(arg, "vol <0-100>")
		if err != nil {
			return err
		}
		s.engine.SetVolume(v / 100)
	case "mute":
		s.engine.ToggleMute()
	case "rate":
		v, err := parseNumber(arg, "rate <0.25-2>")
		if err != nil {
			return err
		}
		s.engine.SetPlaybackRate(v)
	case "shuffle":
		switch arg {
		case "":
			s.engine.ToggleShuffle()
		case "on":
			s.engine.SetShuffle(true)
		case "off":
			s.engine.SetShuffle(false)
		default:
			return fmt.Errorf("%w: shuffle [on|off]", shared.ErrInvalidArgument)
		}
	case "repeat":
		if arg == "" {
			s.engine.CycleRepeatMode()
			break
		}
		mode, err := playback.ParseRepeatMode(arg)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		s.engine.SetRepeatMode(mode)
	case "like":
		state := s.engine.State()
		if state.CurrentTrack == nil {
			return fmt.Errorf("%w: nothing is playing", shared.ErrInvalidInput)
		}
		if !s.store.LikeTrack(ctx, state.CurrentTrack.ID, true) {
			return fmt.Errorf("failed to like %s: %w", state.CurrentTrack.ID, s.store.LastError())
		}
		fmt.Fprintf(s.out, "liked %s\n", state.CurrentTrack.Title)
	case "status":
	default:
		return fmt.Errorf("%w: unknown command %q, type help", shared.ErrInvalidArgument, name)
	}

	if !listings[name] {
		s.status()
	}
	return nil
}

func (s *shell) list(tracks []models.Track) {
	s.results = tracks
	for i, t := range tracks {
		fmt.Fprintf(s.out, "%3d. %s - %s [%s]\n", i+1, t.Artist, t.Title, shared.FormatDuration(t.DurationSeconds()))
	}
	if len(tracks) == 0 {
		fmt.Fprintln(s.out, "no tracks")
	}
}

// resolve maps a 1-based index into the last listing, or a library id, to a track.
func (s *shell) resolve(ctx context.Context, ref string) (models.Track, error) {
	if ref == "" {
		return models.Track{}, fmt.Errorf("%w: expected a listed number or a track id", shared.ErrMissingArgument)
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(s.results) {
			return models.Track{}, fmt.Errorf("%w: no listed track %d", shared.ErrInvalidArgument, n)
		}
		return s.results[n-1], nil
	}
	track, ok := s.store.GetTrack(ctx, ref)
	if !ok {
		return models.Track{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, ref)
	}
	return *track, nil
}

func (s *shell) status() {
	state := s.engine.State()
	title := "nothing loaded"
	if state.CurrentTrack != nil {
		title = state.CurrentTrack.Artist + " - " + state.CurrentTrack.Title
	}
	vol := fmt.Sprintf("%d%%", int(state.Volume*100+0.5))
	if state.Muted {
		vol = "muted"
	}
	fmt.Fprintf(s.out, "[%s] %s %s/%s vol %s rate %gx repeat %s shuffle %t\n",
		state.Status(), title,
		shared.FormatDuration(state.Position), shared.FormatDuration(state.Duration),
		vol, state.Rate, state.Repeat, state.Shuffle)
	if state.Error != "" {
		fmt.Fprintf(s.out, "error: %s\n", state.Error)
	}
}

func parseNumber(arg, usage string) (float64, error) {
	if arg == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingArgument, usage)
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", shared.ErrInvalidArgument, usage)
	}
	return v, nil
}
