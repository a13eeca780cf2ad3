// package services defines the collaborators the player consumes from outside the library:
// a remote track catalog and a metadata extractor.
package services

import (
	"context"

	"github.com/desertthunder/melodify/internal/models"
)

// Catalog is a remote content provider returning playable track descriptors.
type Catalog interface {
	// SearchTracks returns up to limit tracks matching query.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)

	// GetTrendingTracks returns up to limit currently popular tracks.
	GetTrendingTracks(ctx context.Context, limit int) ([]models.Track, error)

	// GetTrack looks up a single track by its catalog or library id.
	GetTrack(ctx context.Context, id string) (*models.Track, error)

	// StreamURL returns the playable locator for a catalog id, or "" when unavailable.
	StreamURL(id string) string

	// Name returns the name of the provider (e.g., "Audius")
	Name() string
}

// MetadataExtractor reads tags and duration from a playable locator and reports them as a
// partial update.
type MetadataExtractor interface {
	Extract(ctx context.Context, locator string) (models.TrackUpdate, error)
}
