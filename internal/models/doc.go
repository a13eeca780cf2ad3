// Package models defines the domain entities shared by the library store, the playback engine and its collaborators.
//
//   - [Track] : a playable item, local file or remote catalog stream, identified by ID
//   - [Playlist] : an ordered list of track ids; membership is stored separately with explicit positions
//   - [TrackUpdate] : a partial track reported by a metadata extractor and merged with [TrackUpdate.Apply]
//   - [PlaylistExport] : a playlist joined with its tracks for export
//
// Tracks carry pointer and map fields; use [Track.Clone] before handing one to another goroutine.
package models
