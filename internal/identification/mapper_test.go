package identification

import (
	"testing"

	"substream/internal/identification/tmdb"
)

func TestBuildMetadataFromMovie(t *testing.T) {
	entry := ResolvedEntry{
		Kind: KindMovie,
		Title: tmdb.Title{
			ID:            603,
			Title:         "The Matrix",
			OriginalTitle: "The Matrix",
			Overview:      "A hacker learns the truth.",
			ReleaseDate:   "1999-03-30",
			Runtime:       136,
			VoteAverage:   8.2,
			PosterPath:    "/poster.jpg",
			BackdropPath:  "/backdrop.jpg",
			Genres:        []tmdb.Genre{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}},
			Videos: tmdb.Videos{Results: []tmdb.Video{
				{Site: "YouTube", Type: "Featurette", Key: "aaa"},
				{Site: "YouTube", Type: "Trailer", Key: "vKQi3bBA1y8"},
			}},
			Images: tmdb.Images{Logos: []tmdb.Image{{FilePath: "/logo.png"}}},
		},
	}

	md := BuildMetadata(entry, "tt0133093")
	if md.Title != "The Matrix" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.IMDbID != "tt0133093" || md.TMDBID != "603" {
		t.Errorf("ids = %q/%q", md.IMDbID, md.TMDBID)
	}
	if md.ReleaseDate != "1999-03-30" {
		t.Errorf("ReleaseDate = %q", md.ReleaseDate)
	}
	if md.DurationSec != 136*60 {
		t.Errorf("DurationSec = %d", md.DurationSec)
	}
	if md.PosterImage != "https://image.tmdb.org/t/p/original/poster.jpg" {
		t.Errorf("PosterImage = %q", md.PosterImage)
	}
	if md.TitleImage != "https://image.tmdb.org/t/p/original/logo.png" {
		t.Errorf("TitleImage = %q", md.TitleImage)
	}
	if md.TrailerLink != "https://www.youtube.com/watch?v=vKQi3bBA1y8" {
		t.Errorf("TrailerLink = %q", md.TrailerLink)
	}
	if len(md.Genres) != 2 || md.Genres[0] != "Action" {
		t.Errorf("Genres = %v", md.Genres)
	}
	if len(md.Ratings) != 1 || md.Ratings[0].Rating != "8.2" {
		t.Errorf("Ratings = %v", md.Ratings)
	}
}

func TestBuildMetadataFromShowUsesNameFields(t *testing.T) {
	entry := ResolvedEntry{
		Kind: KindShow,
		Title: tmdb.Title{
			ID:           1396,
			Name:         "Breaking Bad",
			OriginalName: "Breaking Bad",
			FirstAirDate: "2008-01-20",
		},
	}

	md := BuildMetadata(entry, "tt0903747")
	if md.Title != "Breaking Bad" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.ReleaseDate != "2008-01-20" {
		t.Errorf("ReleaseDate = %q", md.ReleaseDate)
	}
	if md.PosterImage != "" || md.TrailerLink != "" {
		t.Errorf("expected empty artwork links, got %q / %q", md.PosterImage, md.TrailerLink)
	}
}

func TestBuildEpisodeMetadata(t *testing.T) {
	show := ResolvedEntry{Kind: KindShow, Title: tmdb.Title{ID: 1396, Name: "Breaking Bad"}}
	episode := tmdb.Episode{
		ID:            62085,
		Name:          "Cat's in the Bag...",
		Overview:      "Walt and Jesse clean up.",
		SeasonNumber:  1,
		EpisodeNumber: 2,
		Runtime:       48,
		AirDate:       "2008-01-27",
		StillPath:     "/still.jpg",
		VoteAverage:   8.1,
	}

	md := BuildEpisodeMetadata(episode, show, "tt0903747")
	if md.Title != "Cat's in the Bag..." {
		t.Errorf("Title = %q", md.Title)
	}
	if md.TMDBID != "62085" || md.ParentTMDBID != "1396" {
		t.Errorf("ids = %q parent %q", md.TMDBID, md.ParentTMDBID)
	}
	if md.StillImage != "https://image.tmdb.org/t/p/original/still.jpg" {
		t.Errorf("StillImage = %q", md.StillImage)
	}
	if md.DurationSec != 48*60 {
		t.Errorf("DurationSec = %d", md.DurationSec)
	}
}
