// Package reconcile merges identified media into the catalog's document
// graph. It owns all structural mutation of the show/season/episode tree:
// no other component writes to a show's seasons.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"substream/internal/catalog"
	"substream/internal/identification"
	"substream/internal/identification/tmdb"
	"substream/internal/logging"
	"substream/internal/media"
	"substream/internal/services"
)

// Engine reconciles resolved metadata into persistent catalog state.
type Engine struct {
	store  catalog.Store
	logger *slog.Logger
}

// NewEngine creates a reconciliation engine over the given store.
func NewEngine(store catalog.Store, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, services.Wrap(services.ErrValidation, "reconcile", "new", "store is required", nil)
	}
	return &Engine{
		store:  store,
		logger: logging.NewComponentLogger(logger, "reconcile"),
	}, nil
}

// Reconcile merges the resolved entry into the catalog and returns the
// terminal catalog entry for the ingested file. On the movie path the
// transient entry identified by mediaID is promoted in place; on the TV path
// the file is folded into its show container and the transient entry is
// deleted. Season detail may be nil when the season lookup was skipped or
// failed.
func (e *Engine) Reconcile(ctx context.Context, mediaID, ownerID string, basic identification.BasicMetadata, imdbID string, resolved identification.ResolvedEntry, season *tmdb.SeasonDetails) (*media.Entry, error) {
	if resolved.Empty() {
		return nil, services.Wrap(services.ErrData, "reconcile", "reconcile", "resolved entry is empty", nil)
	}

	transient, err := e.store.FindByID(ctx, ownerID, mediaID)
	if err != nil {
		return nil, err
	}
	if transient == nil {
		return nil, services.Wrap(services.ErrData, "reconcile", "reconcile",
			fmt.Sprintf("transient entry %s missing", mediaID), nil)
	}

	if basic.Category == media.CategoryTV || basic.HasEpisode() {
		if !basic.HasEpisode() {
			return nil, services.Wrap(services.ErrValidation, "reconcile", "reconcile",
				"TV entry without season/episode numbers", nil)
		}
		return e.reconcileEpisode(ctx, transient, basic, imdbID, resolved, season)
	}
	return e.reconcileMovie(ctx, transient, imdbID, resolved)
}

func (e *Engine) reconcileMovie(ctx context.Context, transient *media.Entry, imdbID string, resolved identification.ResolvedEntry) (*media.Entry, error) {
	updated, err := e.store.UpdateMetadata(ctx, transient.OwnerID, transient.ID, identification.BuildMetadata(resolved, imdbID))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, services.Wrap(services.ErrData, "reconcile", "update movie", "transient entry vanished", err)
		}
		return nil, err
	}
	e.logger.Info("movie reconciled",
		logging.String("media_id", transient.ID),
		logging.String("title", updated.Metadata.Title))
	return updated, nil
}

// reconcileEpisode is the 2x2 merge over (show exists?, season exists?),
// with the episode-exists check nested inside the season branch.
func (e *Engine) reconcileEpisode(ctx context.Context, transient *media.Entry, basic identification.BasicMetadata, imdbID string, resolved identification.ResolvedEntry, season *tmdb.SeasonDetails) (*media.Entry, error) {
	if resolved.Kind != identification.KindShow || resolved.Title.ID <= 0 {
		return nil, services.Wrap(services.ErrData, "reconcile", "reconcile episode",
			"resolved entry is not a show", nil)
	}

	seasonNumber := basic.SeasonNumber()
	episodeNumber := basic.EpisodeNumber()
	if seasonNumber <= 0 || episodeNumber <= 0 {
		return nil, services.Wrap(services.ErrValidation, "reconcile", "reconcile episode",
			fmt.Sprintf("invalid season/episode numbers %q/%q", basic.Season, basic.Episode), nil)
	}

	show, err := e.findOrCreateShow(ctx, transient.OwnerID, imdbID, resolved)
	if err != nil {
		return nil, err
	}

	existingSeason := show.FindSeason(seasonNumber)
	if existingSeason == nil {
		return e.appendNewSeason(ctx, show, transient, basic, imdbID, resolved, season)
	}
	if existingSeason.FindEpisode(episodeNumber) != nil {
		// Already cataloged: drop the duplicate file's transient entry and
		// leave the show untouched.
		if err := e.deleteTransient(ctx, transient); err != nil {
			return nil, err
		}
		e.logger.Info("duplicate episode ignored",
			logging.String("show_id", show.ID),
			logging.Int("season", seasonNumber),
			logging.Int("episode", episodeNumber))
		return show, nil
	}
	return e.appendEpisode(ctx, show, existingSeason, transient, basic, imdbID, resolved, season)
}

func (e *Engine) findOrCreateShow(ctx context.Context, ownerID, imdbID string, resolved identification.ResolvedEntry) (*media.Entry, error) {
	tmdbID := strconv.FormatInt(resolved.Title.ID, 10)
	show, err := e.store.FindShowByTMDBID(ctx, ownerID, tmdbID)
	if err != nil {
		return nil, err
	}
	if show != nil {
		return show, nil
	}

	metadata := identification.BuildMetadata(resolved, imdbID)
	show = &media.Entry{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Title:    metadata.Title,
		Category: media.CategoryTV,
		Metadata: metadata,
	}
	inserted, err := e.store.Insert(ctx, show)
	if err != nil {
		return nil, err
	}
	e.logger.Info("show container created",
		logging.String("show_id", inserted.ID),
		logging.String("title", inserted.Title))
	return inserted, nil
}

func (e *Engine) appendNewSeason(ctx context.Context, show, transient *media.Entry, basic identification.BasicMetadata, imdbID string, resolved identification.ResolvedEntry, season *tmdb.SeasonDetails) (*media.Entry, error) {
	seasonNumber := basic.SeasonNumber()
	newSeason := media.Season{
		ID:           fmt.Sprintf("%s-season-%d", show.ID, seasonNumber),
		Name:         fmt.Sprintf("Season %d", seasonNumber),
		SeasonNumber: seasonNumber,
		Episodes:     []media.Entry{buildEpisode(transient, basic, imdbID, resolved, season)},
	}
	if season != nil {
		if season.Name != "" {
			newSeason.Name = season.Name
		}
		newSeason.Summary = season.Overview
	}
	show.Seasons = append(show.Seasons, newSeason)
	return e.persistShow(ctx, show, transient)
}

func (e *Engine) appendEpisode(ctx context.Context, show *media.Entry, target *media.Season, transient *media.Entry, basic identification.BasicMetadata, imdbID string, resolved identification.ResolvedEntry, season *tmdb.SeasonDetails) (*media.Entry, error) {
	target.Episodes = append(target.Episodes, buildEpisode(transient, basic, imdbID, resolved, season))
	target.SortEpisodes()
	return e.persistShow(ctx, show, transient)
}

func (e *Engine) persistShow(ctx context.Context, show, transient *media.Entry) (*media.Entry, error) {
	updated, err := e.store.ReplaceSeasons(ctx, show.OwnerID, show.ID, show.Seasons, show.Revision)
	if err != nil {
		return nil, err
	}
	if err := e.deleteTransient(ctx, transient); err != nil {
		return nil, err
	}
	e.logger.Info("episode reconciled",
		logging.String("show_id", show.ID),
		logging.String("media_id", transient.ID))
	return updated, nil
}

// The transient's data has been folded into the container; a concurrent
// rollback may already have removed it, which is fine.
func (e *Engine) deleteTransient(ctx context.Context, transient *media.Entry) error {
	err := e.store.Delete(ctx, transient.OwnerID, transient.ID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	return nil
}

// buildEpisode constructs the embedded episode entry from the transient
// file entry plus the matching episode detail when the season payload
// carries one.
func buildEpisode(transient *media.Entry, basic identification.BasicMetadata, imdbID string, resolved identification.ResolvedEntry, season *tmdb.SeasonDetails) media.Entry {
	episode := media.Entry{
		ID:            transient.ID,
		OwnerID:       transient.OwnerID,
		Title:         transient.Title,
		Category:      media.CategoryTV,
		FileLocation:  transient.FileLocation,
		SeasonNumber:  basic.SeasonNumber(),
		EpisodeNumber: basic.EpisodeNumber(),
	}
	if season != nil {
		for _, detail := range season.Episodes {
			if detail.EpisodeNumber == basic.EpisodeNumber() {
				episode.Metadata = identification.BuildEpisodeMetadata(detail, resolved, imdbID)
				if detail.Name != "" {
					episode.Title = detail.Name
				}
				break
			}
		}
	}
	return episode
}
