package identification

import (
	"fmt"
	"strconv"

	"substream/internal/identification/tmdb"
	"substream/internal/media"
)

const imageBaseURL = "https://image.tmdb.org/t/p/original"

// BuildMetadata maps a resolved TMDB record onto the catalog metadata block.
// The IMDb token is carried through so re-identification of the same file
// can short-circuit on it later.
func BuildMetadata(entry ResolvedEntry, imdbID string) *media.Metadata {
	title := entry.Title
	md := &media.Metadata{
		Title:          displayName(title),
		AlternateTitle: alternateName(title),
		Summary:        title.Overview,
		IMDbID:         imdbID,
		TMDBID:         strconv.FormatInt(title.ID, 10),
		ReleaseDate:    releaseDate(title),
		DurationSec:    title.Runtime * 60,
		PosterImage:    imageLink(title.PosterPath),
		BackdropImage:  imageLink(title.BackdropPath),
		TrailerLink:    trailerLink(title.Videos),
	}
	if title.VoteAverage > 0 {
		md.Ratings = []media.Rating{{
			Name:   "TMDB",
			Rating: fmt.Sprintf("%.1f", title.VoteAverage),
		}}
	}
	for _, genre := range title.Genres {
		md.Genres = append(md.Genres, genre.Name)
	}
	if len(title.Images.Logos) > 0 {
		md.TitleImage = imageLink(title.Images.Logos[0].FilePath)
	}
	return md
}

// BuildEpisodeMetadata maps a TMDB season episode onto the metadata block
// for an episode entry. The parent show's ids are recorded so the episode
// remains traceable to its container.
func BuildEpisodeMetadata(episode tmdb.Episode, show ResolvedEntry, imdbID string) *media.Metadata {
	md := &media.Metadata{
		Title:        episode.Name,
		Summary:      episode.Overview,
		IMDbID:       imdbID,
		TMDBID:       strconv.FormatInt(episode.ID, 10),
		ParentTMDBID: strconv.FormatInt(show.Title.ID, 10),
		ReleaseDate:  episode.AirDate,
		DurationSec:  episode.Runtime * 60,
		StillImage:   imageLink(episode.StillPath),
	}
	if episode.VoteAverage > 0 {
		md.Ratings = []media.Rating{{
			Name:   "TMDB",
			Rating: fmt.Sprintf("%.1f", episode.VoteAverage),
		}}
	}
	return md
}

func displayName(title tmdb.Title) string {
	if title.Title != "" {
		return title.Title
	}
	return title.Name
}

func alternateName(title tmdb.Title) string {
	if title.OriginalTitle != "" {
		return title.OriginalTitle
	}
	return title.OriginalName
}

func releaseDate(title tmdb.Title) string {
	if title.ReleaseDate != "" {
		return title.ReleaseDate
	}
	return title.FirstAirDate
}

func imageLink(path string) string {
	if path == "" {
		return ""
	}
	return imageBaseURL + path
}

func trailerLink(videos tmdb.Videos) string {
	for _, video := range videos.Results {
		if video.Site == "YouTube" && video.Type == "Trailer" && video.Key != "" {
			return "https://www.youtube.com/watch?v=" + video.Key
		}
	}
	return ""
}
