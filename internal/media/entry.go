// Package media defines the catalog domain model: media entries, the nested
// show/season/episode structure, and the enriched metadata block attached to
// identified entries.
package media

import (
	"sort"
	"strings"
)

// Category distinguishes flat movie entries from TV structures.
type Category string

const (
	CategoryMovie Category = "MOVIE"
	CategoryTV    Category = "TV"
)

// ParseCategory normalizes a category string, defaulting to MOVIE.
func ParseCategory(value string) Category {
	if strings.EqualFold(strings.TrimSpace(value), string(CategoryTV)) {
		return CategoryTV
	}
	return CategoryMovie
}

// Rating is a single named rating source attached to metadata.
type Rating struct {
	Name     string `json:"name" bson:"name"`
	Rating   string `json:"rating" bson:"rating"`
	IconLink string `json:"iconLink,omitempty" bson:"iconLink,omitempty"`
}

// Metadata is the enriched block written onto an entry once identification
// succeeds. An entry without metadata is transient: it has been created for a
// discovered file but not yet reconciled.
type Metadata struct {
	Title          string   `json:"title" bson:"title"`
	AlternateTitle string   `json:"alternateTitle,omitempty" bson:"alternateTitle,omitempty"`
	Summary        string   `json:"summary,omitempty" bson:"summary,omitempty"`
	IMDbID         string   `json:"imdbId" bson:"imdbId"`
	TMDBID         string   `json:"tmdbId" bson:"tmdbId"`
	ParentTMDBID   string   `json:"parentTmdbId,omitempty" bson:"parentTmdbId,omitempty"`
	ReleaseDate    string   `json:"releaseDate,omitempty" bson:"releaseDate,omitempty"`
	Ratings        []Rating `json:"rating,omitempty" bson:"rating,omitempty"`
	DurationSec    int      `json:"duration,omitempty" bson:"duration,omitempty"`
	Genres         []string `json:"genres,omitempty" bson:"genres,omitempty"`
	PosterImage    string   `json:"posterImage,omitempty" bson:"posterImage,omitempty"`
	BackdropImage  string   `json:"backdropImage,omitempty" bson:"backdropImage,omitempty"`
	ThumbnailImage string   `json:"thumbnailImage,omitempty" bson:"thumbnailImage,omitempty"`
	TitleImage     string   `json:"titleImage,omitempty" bson:"titleImage,omitempty"`
	StillImage     string   `json:"stillPath,omitempty" bson:"stillPath,omitempty"`
	TrailerLink    string   `json:"trailerLink,omitempty" bson:"trailerLink,omitempty"`
	Language       string   `json:"language,omitempty" bson:"language,omitempty"`
}

// Season is embedded in a show container entry. Episode entries inside a
// season are unique by episode number and kept sorted ascending.
type Season struct {
	ID           string  `json:"id" bson:"id"`
	Name         string  `json:"name" bson:"name"`
	Summary      string  `json:"summary,omitempty" bson:"summary,omitempty"`
	SeasonNumber int     `json:"seasonNumber" bson:"seasonNumber"`
	Episodes     []Entry `json:"episodes" bson:"episodes"`
}

// Entry is the catalog's atomic unit. It represents a movie, a TV show
// container (no FileLocation, aggregates Seasons), or an episode embedded in
// a season (SeasonNumber/EpisodeNumber set).
type Entry struct {
	ID            string    `json:"id" bson:"id"`
	OwnerID       string    `json:"ownerId" bson:"ownerId"`
	Title         string    `json:"mediaTitle" bson:"mediaTitle"`
	Category      Category  `json:"category" bson:"category"`
	FileLocation  string    `json:"mediaLocation,omitempty" bson:"mediaLocation,omitempty"`
	SimpleID      string    `json:"simpleId,omitempty" bson:"simpleId,omitempty"`
	SeasonNumber  int       `json:"seasonNumber,omitempty" bson:"seasonNumber,omitempty"`
	EpisodeNumber int       `json:"episodeNumber,omitempty" bson:"episodeNumber,omitempty"`
	Seasons       []Season  `json:"seasons,omitempty" bson:"seasons,omitempty"`
	Metadata      *Metadata `json:"metadata,omitempty" bson:"metadata,omitempty"`

	// Revision guards read-modify-write updates of the seasons collection.
	// Incremented on every seasons replacement.
	Revision int64 `json:"-" bson:"revision"`
}

// IsTransient reports whether the entry is a pre-identification placeholder.
func (e *Entry) IsTransient() bool {
	return e.Metadata == nil && len(e.Seasons) == 0
}

// IsShowContainer reports whether the entry aggregates seasons rather than
// pointing at a file.
func (e *Entry) IsShowContainer() bool {
	return e.Category == CategoryTV && e.FileLocation == ""
}

// FindSeason returns the season with the given number, or nil.
func (e *Entry) FindSeason(number int) *Season {
	for i := range e.Seasons {
		if e.Seasons[i].SeasonNumber == number {
			return &e.Seasons[i]
		}
	}
	return nil
}

// FindEpisode returns the episode with the given number, or nil.
func (s *Season) FindEpisode(number int) *Entry {
	for i := range s.Episodes {
		if s.Episodes[i].EpisodeNumber == number {
			return &s.Episodes[i]
		}
	}
	return nil
}

// SortEpisodes orders the season's episodes ascending by episode number.
// Appends do not maintain order, so callers re-sort after every insertion.
func (s *Season) SortEpisodes() {
	sort.SliceStable(s.Episodes, func(i, j int) bool {
		return s.Episodes[i].EpisodeNumber < s.Episodes[j].EpisodeNumber
	})
}

// Clone returns a deep copy of the entry. Stores hand out clones so callers
// can mutate season collections without aliasing stored state.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Metadata != nil {
		md := *e.Metadata
		md.Ratings = append([]Rating(nil), e.Metadata.Ratings...)
		md.Genres = append([]string(nil), e.Metadata.Genres...)
		cp.Metadata = &md
	}
	if e.Seasons != nil {
		cp.Seasons = make([]Season, len(e.Seasons))
		for i := range e.Seasons {
			cp.Seasons[i] = *e.Seasons[i].clone()
		}
	}
	return &cp
}

func (s *Season) clone() *Season {
	cp := *s
	if s.Episodes != nil {
		cp.Episodes = make([]Entry, len(s.Episodes))
		for i := range s.Episodes {
			cp.Episodes[i] = *s.Episodes[i].Clone()
		}
	}
	return &cp
}
