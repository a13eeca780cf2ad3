// Package repositories implements the SQLite-backed music library.
//
// Three repositories return wrapped errors in the usual way:
//   - [TrackRepository] : track upserts, lookups and filtered listings (newest first)
//   - [PlaylistRepository] : playlist upserts with ordered membership, rebuilt in one transaction
//   - [SettingsRepository] : key/value settings
//
// [Store] composes them behind the failure policy used by the rest of the application: reads return
// empty values, writes return false, and causes are logged and classified with the shared store errors
// (unavailable, read failed, write failed, transaction aborted). Transactional operations are serialized
// by a store-wide mutex, and deletes remove membership rows explicitly rather than relying on cascade.
package repositories
