// Package server exposes the playback engine and the library over HTTP for remote control.
//
// # Routing
//
// [BasicRouter] registers method-qualified [http.ServeMux] patterns, so path values such as
// /api/tracks/{id} come from [http.Request.PathValue] and a wrong method gets 405 from the mux.
// [New] installs [Recover] outermost, then [RequestLogger].
//
// # Endpoints
//
// [PlayerHandler] maps engine commands to POST endpoints under /api/player (play, pause, resume,
// toggle, stop, next, previous, seek, volume, mute, rate, shuffle, repeat, queue, queue/add) and
// answers each with the resulting player state. GET /api/player/state and /api/player/history read.
//
// [LibraryHandler] serves /api/tracks, /api/tracks/{id}, /api/tracks/{id}/like, /api/playlists,
// /api/playlists/{id} and /api/playlists/{id}/export?format=csv|md|txt.
//
// # State Stream
//
// [StreamHandler] upgrades /api/player/stream to a websocket (github.com/gorilla/websocket) and
// writes every published state as a JSON text frame, in order, starting with the current state.
// The server pings every 54s and drops clients that miss a pong for 60s.
package server
