package identification

import (
	"context"
	"log/slog"

	"substream/internal/identification/tmdb"
	"substream/internal/logging"
)

// Kind tags a resolved catalog record. Downstream components switch on the
// tag instead of re-inspecting which TMDB field happens to be populated.
type Kind string

const (
	KindNone  Kind = "none"
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// ResolvedEntry is the tagged result of a catalog lookup. Kind is KindNone
// when the identifier could not be resolved; Title is only meaningful for
// the other kinds.
type ResolvedEntry struct {
	Kind  Kind
	Title tmdb.Title
}

// Empty reports whether the lookup produced no usable record.
func (r ResolvedEntry) Empty() bool {
	return r.Kind == KindNone || r.Kind == ""
}

// ShowResolution pairs a resolved show with its season detail. Season is nil
// when no season number was requested or the season lookup failed.
type ShowResolution struct {
	Show   ResolvedEntry
	Season *tmdb.SeasonDetails
}

// Resolver fetches full catalog detail for an external identifier.
type Resolver struct {
	finder tmdb.Finder
	logger *slog.Logger
}

// NewResolver creates a resolver around a TMDB finder.
func NewResolver(finder tmdb.Finder, logger *slog.Logger) *Resolver {
	return &Resolver{
		finder: finder,
		logger: logging.NewComponentLogger(logger, "resolver"),
	}
}

// ResolveEntry looks up the canonical record for an IMDb title token and
// classifies it as a movie or a show. The find response buckets are scanned
// in fixed order (movie, tv, tv episode); an episode record maps to its
// parent show. Lookup failures yield an empty entry, never an error: the
// caller treats an empty entry the same as an unidentifiable file.
func (r *Resolver) ResolveEntry(ctx context.Context, imdbID string) ResolvedEntry {
	found, err := r.finder.FindByIMDbID(ctx, imdbID)
	if err != nil {
		r.logger.Warn("find by imdb id failed",
			logging.String("imdb_id", imdbID),
			logging.Error(err))
		return ResolvedEntry{Kind: KindNone}
	}

	switch {
	case len(found.MovieResults) > 0:
		return r.movieDetail(ctx, found.MovieResults[0].ID)
	case len(found.TVResults) > 0:
		return r.showDetail(ctx, found.TVResults[0].ID)
	case len(found.TVEpisodeResults) > 0:
		return r.showDetail(ctx, found.TVEpisodeResults[0].ShowID)
	default:
		return ResolvedEntry{Kind: KindNone}
	}
}

// ResolveEpisodes resolves a show and, when a season number is known,
// its season episode detail. Returns nil when the identifier does not
// resolve to a show. A failed season lookup leaves Season nil rather than
// failing the whole resolution.
func (r *Resolver) ResolveEpisodes(ctx context.Context, imdbID string, seasonNumber int) *ShowResolution {
	show := r.ResolveEntry(ctx, imdbID)
	if show.Kind != KindShow {
		return nil
	}
	resolution := &ShowResolution{Show: show}
	if seasonNumber <= 0 {
		return resolution
	}

	season, err := r.finder.SeasonEpisodes(ctx, show.Title.ID, seasonNumber)
	if err != nil {
		r.logger.Warn("season lookup failed",
			logging.String("imdb_id", imdbID),
			logging.Int64("show_id", show.Title.ID),
			logging.Int("season", seasonNumber),
			logging.Error(err))
		return resolution
	}
	resolution.Season = season
	return resolution
}

func (r *Resolver) movieDetail(ctx context.Context, movieID int64) ResolvedEntry {
	detail, err := r.finder.MovieDetails(ctx, movieID)
	if err != nil {
		r.logger.Warn("movie detail lookup failed",
			logging.Int64("movie_id", movieID),
			logging.Error(err))
		return ResolvedEntry{Kind: KindNone}
	}
	return ResolvedEntry{Kind: KindMovie, Title: *detail}
}

func (r *Resolver) showDetail(ctx context.Context, showID int64) ResolvedEntry {
	if showID <= 0 {
		return ResolvedEntry{Kind: KindNone}
	}
	detail, err := r.finder.TVDetails(ctx, showID)
	if err != nil {
		r.logger.Warn("show detail lookup failed",
			logging.Int64("show_id", showID),
			logging.Error(err))
		return ResolvedEntry{Kind: KindNone}
	}
	return ResolvedEntry{Kind: KindShow, Title: *detail}
}
