// package server wires the control API: router, middleware, handlers and the HTTP listener
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/playback"
	"github.com/desertthunder/melodify/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, recovery, CORS, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the control service.
// Implementations handle a group of related endpoints.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Player is the playback surface driven by the control API.
type Player interface {
	State() playback.PlayerState
	Subscribe() *playback.Subscription
	RecentlyPlayed() []models.Track
	PlayTrack(track models.Track)
	Pause()
	Resume()
	TogglePlayPause()
	Stop()
	PlayNext(loop bool)
	PlayPrevious()
	SeekTo(position float64)
	SetVolume(level float64)
	ToggleMute()
	SetPlaybackRate(rate float64)
	ToggleShuffle()
	SetShuffle(on bool)
	CycleRepeatMode()
	SetRepeatMode(mode playback.RepeatMode)
	SetQueue(tracks []models.Track, start int, autoPlay bool)
	AddToQueue(tracks []models.Track)
}

// Library is the read side of the library store plus liking.
type Library interface {
	GetTrack(ctx context.Context, id string) (*models.Track, bool)
	FindTracks(ctx context.Context, criteria map[string]any) []models.Track
	LikeTrack(ctx context.Context, id string, liked bool) bool
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, bool)
	GetAllPlaylists(ctx context.Context) []models.Playlist
	GetPlaylistTracks(ctx context.Context, playlistID string) []models.Track
}

// ServerOpts configures a [Server].
type ServerOpts struct {
	Addr    string
	Player  Player
	Library Library
	Logger  *log.Logger
}

// Server serves the control API.
type Server struct {
	addr   string
	router *BasicRouter
	logger *log.Logger
	stream *StreamHandler
}

// New creates a Server with every route registered.
func New(opts ServerOpts) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(opts.Logger, "component", "server")

	router := NewBasicRouter()
	router.Use(Recover(logger), RequestLogger(logger))

	player := NewPlayerHandler(opts.Player, opts.Library, logger)
	player.Register(router)
	NewLibraryHandler(opts.Library).Register(router)

	stream := NewStreamHandler(opts.Player, logger)
	router.Handler(stream)

	return &Server{addr: opts.Addr, router: router, logger: logger, stream: stream}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String(), "routes", len(s.router.Patterns()))
		errs <- srv.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	s.stream.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
