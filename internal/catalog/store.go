// Package catalog persists the media catalog in a document store. It offers
// a mongo-backed implementation for the daemon and an in-memory
// implementation for tests; both share the Store interface consumed by the
// reconciliation engine and the pipeline.
package catalog

import (
	"context"
	"errors"

	"substream/internal/media"
)

var (
	// ErrNotFound marks a write aimed at an entry that does not exist.
	// Lookups report a miss as (nil, nil) instead.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrDuplicateLocation marks an insert for a (owner, file location)
	// pair that already has a catalog entry.
	ErrDuplicateLocation = errors.New("file location already cataloged")
	// ErrRevisionConflict marks a seasons replacement whose expected
	// revision no longer matches the stored document. The entry was
	// modified concurrently; the caller re-reads and retries.
	ErrRevisionConflict = errors.New("show revision conflict")
)

// Store is the catalog persistence contract. All lookups return (nil, nil)
// when no entry matches.
type Store interface {
	// FindByID fetches a top-level entry by id.
	FindByID(ctx context.Context, ownerID, id string) (*media.Entry, error)
	// FindByLocation searches flat entries and nested season episodes for
	// one whose file location matches, returning the entry (for episodes,
	// the embedded episode entry itself).
	FindByLocation(ctx context.Context, ownerID, location string) (*media.Entry, error)
	// FindShowByTMDBID fetches the show container holding the given TMDB id.
	FindShowByTMDBID(ctx context.Context, ownerID, tmdbID string) (*media.Entry, error)
	// Insert stores a new top-level entry.
	Insert(ctx context.Context, entry *media.Entry) (*media.Entry, error)
	// UpdateMetadata sets the metadata block on an existing entry and
	// returns the updated entry.
	UpdateMetadata(ctx context.Context, ownerID, id string, metadata *media.Metadata) (*media.Entry, error)
	// ReplaceSeasons swaps a show container's seasons collection. The
	// replacement only applies when the stored revision still equals
	// expectedRevision; otherwise ErrRevisionConflict is returned.
	ReplaceSeasons(ctx context.Context, ownerID, showID string, seasons []media.Season, expectedRevision int64) (*media.Entry, error)
	// Delete removes a top-level entry.
	Delete(ctx context.Context, ownerID, id string) error
}
