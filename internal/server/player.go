package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/playback"
)

// PlayerHandler maps the transport commands of a [Player] to POST endpoints under /api/player.
// Every command responds with the resulting [playback.PlayerState].
type PlayerHandler struct {
	player  Player
	library Library
	logger  *log.Logger
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(player Player, library Library, logger *log.Logger) *PlayerHandler {
	return &PlayerHandler{player: player, library: library, logger: logger}
}

type playRequest struct {
	TrackID    string `json:"trackId"`
	PlaylistID string `json:"playlistId"`
	Index      int    `json:"index"`
}

type seekRequest struct {
	Position float64 `json:"position"`
}

type volumeRequest struct {
	Level float64 `json:"level"`
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

type shuffleRequest struct {
	On *bool `json:"on"` // nil toggles
}

type repeatRequest struct {
	Mode string `json:"mode"` // empty cycles
}

type nextRequest struct {
	Loop *bool `json:"loop"` // default true
}

type queueRequest struct {
	TrackIDs []string `json:"trackIds"`
	Start    int      `json:"start"`
	AutoPlay bool     `json:"autoPlay"`
}

// Register adds the player routes to r.
func (h *PlayerHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/api/player/state", http.HandlerFunc(h.state))
	r.Handle(http.MethodGet, "/api/player/history", http.HandlerFunc(h.history))
	r.Handle(http.MethodPost, "/api/player/play", http.HandlerFunc(h.play))
	r.Handle(http.MethodPost, "/api/player/pause", h.command(h.player.Pause))
	r.Handle(http.MethodPost, "/api/player/resume", h.command(h.player.Resume))
	r.Handle(http.MethodPost, "/api/player/toggle", h.command(h.player.TogglePlayPause))
	r.Handle(http.MethodPost, "/api/player/stop", h.command(h.player.Stop))
	r.Handle(http.MethodPost, "/api/player/previous", h.command(h.player.PlayPrevious))
	r.Handle(http.MethodPost, "/api/player/mute", h.command(h.player.ToggleMute))
	r.Handle(http.MethodPost, "/api/player/next", http.HandlerFunc(h.next))
	r.Handle(http.MethodPost, "/api/player/seek", http.HandlerFunc(h.seek))
	r.Handle(http.MethodPost, "/api/player/volume", http.HandlerFunc(h.volume))
	r.Handle(http.MethodPost, "/api/player/rate", http.HandlerFunc(h.rate))
	r.Handle(http.MethodPost, "/api/player/shuffle", http.HandlerFunc(h.shuffle))
	r.Handle(http.MethodPost, "/api/player/repeat", http.HandlerFunc(h.repeat))
	r.Handle(http.MethodPost, "/api/player/queue", http.HandlerFunc(h.setQueue))
	r.Handle(http.MethodPost, "/api/player/queue/add", http.HandlerFunc(h.addToQueue))
}

func (h *PlayerHandler) command(fn func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn()
		writeJSON(w, http.StatusOK, h.player.State())
	})
}

func (h *PlayerHandler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.player.RecentlyPlayed())
}

// play starts a single track, or a playlist from Index when PlaylistID is set.
func (h *PlayerHandler) play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !decode(w, r, &req) {
		return
	}

	switch {
	case req.PlaylistID != "":
		if _, ok := h.library.GetPlaylist(r.Context(), req.PlaylistID); !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("playlist %s not found", req.PlaylistID))
			return
		}
		tracks := h.library.GetPlaylistTracks(r.Context(), req.PlaylistID)
		if len(tracks) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "playlist is empty")
			return
		}
		h.logger.Info("playing playlist", "id", req.PlaylistID, "index", req.Index)
		h.player.SetQueue(tracks, req.Index, true)
	case req.TrackID != "":
		track, ok := h.library.GetTrack(r.Context(), req.TrackID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("track %s not found", req.TrackID))
			return
		}
		h.logger.Info("playing track", "id", track.ID)
		h.player.PlayTrack(*track)
	default:
		writeError(w, http.StatusBadRequest, "trackId or playlistId is required")
		return
	}
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) next(w http.ResponseWriter, r *http.Request) {
	var req nextRequest
	if !decode(w, r, &req) {
		return
	}
	loop := req.Loop == nil || *req.Loop
	h.player.PlayNext(loop)
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !decode(w, r, &req) {
		return
	}
	h.player.SeekTo(req.Position)
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) volume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decode(w, r, &req) {
		return
	}
	h.player.SetVolume(req.Level)
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !decode(w, r, &req) {
		return
	}
	h.player.SetPlaybackRate(req.Rate)
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) shuffle(w http.ResponseWriter, r *http.Request) {
	var req shuffleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.On == nil {
		h.player.ToggleShuffle()
	} else {
		h.player.SetShuffle(*req.On)
	}
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) repeat(w http.ResponseWriter, r *http.Request) {
	var req repeatRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Mode == "" {
		h.player.CycleRepeatMode()
		writeJSON(w, http.StatusOK, h.player.State())
		return
	}

	mode, err := playback.ParseRepeatMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.player.SetRepeatMode(mode)
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) setQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if !decode(w, r, &req) {
		return
	}
	tracks, ok := h.resolve(w, r, req.TrackIDs)
	if !ok {
		return
	}
	h.player.SetQueue(tracks, req.Start, req.AutoPlay)
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) addToQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if !decode(w, r, &req) {
		return
	}
	tracks, ok := h.resolve(w, r, req.TrackIDs)
	if !ok {
		return
	}
	h.player.AddToQueue(tracks)
	writeJSON(w, http.StatusOK, h.player.State())
}

func (h *PlayerHandler) resolve(w http.ResponseWriter, r *http.Request, ids []string) ([]models.Track, bool) {
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "trackIds is required")
		return nil, false
	}
	tracks := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		t, ok := h.library.GetTrack(r.Context(), id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("track %s not found", id))
			return nil, false
		}
		tracks = append(tracks, *t)
	}
	return tracks, true
}

// decode reads a JSON body into v. An empty body leaves v at its zero value.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
