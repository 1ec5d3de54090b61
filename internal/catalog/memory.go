package catalog

import (
	"context"
	"fmt"
	"sync"

	"substream/internal/media"
)

// MemoryStore is an in-memory Store with the same semantics as the mongo
// implementation, including the unique (owner, location) constraint and the
// revision check on seasons replacement. Used by tests and usable as a
// throwaway backend.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*media.Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) FindByID(ctx context.Context, ownerID, id string) (*media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByID(ownerID, id).Clone(), nil
}

func (s *MemoryStore) FindByLocation(ctx context.Context, ownerID, location string) (*media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Flat entries first, matching the aggregation's bucket order.
	for _, entry := range s.entries {
		if entry.OwnerID == ownerID && entry.FileLocation == location {
			return entry.Clone(), nil
		}
	}
	for _, entry := range s.entries {
		if entry.OwnerID != ownerID {
			continue
		}
		for i := range entry.Seasons {
			for j := range entry.Seasons[i].Episodes {
				if entry.Seasons[i].Episodes[j].FileLocation == location {
					return entry.Seasons[i].Episodes[j].Clone(), nil
				}
			}
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindShowByTMDBID(ctx context.Context, ownerID, tmdbID string) (*media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.OwnerID != ownerID || !entry.IsShowContainer() {
			continue
		}
		if entry.Metadata != nil && entry.Metadata.TMDBID == tmdbID {
			return entry.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Insert(ctx context.Context, entry *media.Entry) (*media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.FileLocation != "" {
		for _, existing := range s.entries {
			if existing.OwnerID == entry.OwnerID && existing.FileLocation == entry.FileLocation {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateLocation, entry.FileLocation)
			}
		}
	}
	s.entries = append(s.entries, entry.Clone())
	return entry.Clone(), nil
}

func (s *MemoryStore) UpdateMetadata(ctx context.Context, ownerID, id string, metadata *media.Metadata) (*media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.findByID(ownerID, id)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry.Metadata = metadata
	return entry.Clone(), nil
}

func (s *MemoryStore) ReplaceSeasons(ctx context.Context, ownerID, showID string, seasons []media.Season, expectedRevision int64) (*media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.findByID(ownerID, showID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, showID)
	}
	if entry.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: show %s expected revision %d, found %d",
			ErrRevisionConflict, showID, expectedRevision, entry.Revision)
	}
	replacement := media.Entry{Seasons: seasons}
	entry.Seasons = replacement.Clone().Seasons
	entry.Revision++
	return entry.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if entry.OwnerID == ownerID && entry.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Len reports the number of top-level entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) findByID(ownerID, id string) *media.Entry {
	for _, entry := range s.entries {
		if entry.OwnerID == ownerID && entry.ID == id {
			return entry
		}
	}
	return nil
}
