package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/melodify/internal/formatter"
	"github.com/desertthunder/melodify/internal/models"
)

// LibraryHandler serves read access to tracks and playlists, plus liking.
type LibraryHandler struct {
	library Library
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(library Library) *LibraryHandler {
	return &LibraryHandler{library: library}
}

type likeRequest struct {
	Liked *bool `json:"liked"` // default true
}

type playlistResponse struct {
	models.Playlist
	Items []models.Track `json:"items"`
}

// Register adds the library routes to r.
func (h *LibraryHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/api/tracks", http.HandlerFunc(h.listTracks))
	r.Handle(http.MethodGet, "/api/tracks/{id}", http.HandlerFunc(h.getTrack))
	r.Handle(http.MethodPost, "/api/tracks/{id}/like", http.HandlerFunc(h.likeTrack))
	r.Handle(http.MethodGet, "/api/playlists", http.HandlerFunc(h.listPlaylists))
	r.Handle(http.MethodGet, "/api/playlists/{id}", http.HandlerFunc(h.getPlaylist))
	r.Handle(http.MethodGet, "/api/playlists/{id}/export", http.HandlerFunc(h.exportPlaylist))
}

// listTracks accepts the query, liked, local, source and format filters.
func (h *LibraryHandler) listTracks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := map[string]any{}
	for _, key := range []string{"query", "source", "format"} {
		if v := q.Get(key); v != "" {
			criteria[key] = v
		}
	}
	for _, key := range []string{"liked", "local"} {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", key, v))
				return
			}
			criteria[key] = b
		}
	}
	writeJSON(w, http.StatusOK, h.library.FindTracks(r.Context(), criteria))
}

func (h *LibraryHandler) getTrack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	track, ok := h.library.GetTrack(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("track %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (h *LibraryHandler) likeTrack(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !decode(w, r, &req) {
		return
	}
	liked := req.Liked == nil || *req.Liked

	id := r.PathValue("id")
	if !h.library.LikeTrack(r.Context(), id, liked) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("track %s not found", id))
		return
	}
	track, _ := h.library.GetTrack(r.Context(), id)
	writeJSON(w, http.StatusOK, track)
}

func (h *LibraryHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.library.GetAllPlaylists(r.Context()))
}

func (h *LibraryHandler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	export, ok := h.export(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{Playlist: export.Playlist, Items: export.Tracks})
}

func (h *LibraryHandler) exportPlaylist(w http.ResponseWriter, r *http.Request) {
	export, ok := h.export(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatter.FormatCSV
	}
	data, err := formatter.Export(export, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "text/plain; charset=utf-8"
	switch format {
	case formatter.FormatCSV:
		contentType = "text/csv; charset=utf-8"
	case formatter.FormatMarkdown, "markdown":
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *LibraryHandler) export(w http.ResponseWriter, r *http.Request) (*models.PlaylistExport, bool) {
	id := r.PathValue("id")
	playlist, ok := h.library.GetPlaylist(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("playlist %s not found", id))
		return nil, false
	}
	return &models.PlaylistExport{
		Playlist: *playlist,
		Tracks:   h.library.GetPlaylistTracks(r.Context(), id),
	}, true
}
