// Package services implements the collaborators around the player core.
//
// # Catalog
//
// [Catalog] is the contract for remote content providers: search, trending, single-track
// lookup and stream locators. [Audius] implements it against the public Audius API:
//   - API hosts are discovered from https://api.audius.co and rotated when one fails
//   - requests are throttled with a token bucket (golang.org/x/time/rate)
//   - tracks map to "audius-<id>" with format "streaming" and the provider fields kept in Metadata
//
// # Metadata
//
// [MetadataExtractor] reads tags and duration for a locator and reports a partial
// [models.TrackUpdate]. [TagReader] implements it for local files with github.com/dhowden/tag.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a non-2xx status
//   - [shared.ErrServiceUnavailable] : no API host could be discovered
//   - [shared.ErrTrackNotFound] : the catalog has no such track
//   - [shared.ErrInvalidInput] : empty query or a remote locator given to the tag reader
package services
