package identification

import (
	"context"
	"errors"
	"testing"

	"substream/internal/identification/tmdb"
)

// fakeFinder satisfies tmdb.Finder with canned responses.
type fakeFinder struct {
	findResponse *tmdb.FindResponse
	findErr      error
	movie        *tmdb.Title
	movieErr     error
	show         *tmdb.Title
	showErr      error
	season       *tmdb.SeasonDetails
	seasonErr    error

	seasonCalls int
}

func (f *fakeFinder) FindByIMDbID(ctx context.Context, imdbID string) (*tmdb.FindResponse, error) {
	return f.findResponse, f.findErr
}

func (f *fakeFinder) MovieDetails(ctx context.Context, movieID int64) (*tmdb.Title, error) {
	return f.movie, f.movieErr
}

func (f *fakeFinder) TVDetails(ctx context.Context, showID int64) (*tmdb.Title, error) {
	return f.show, f.showErr
}

func (f *fakeFinder) SeasonEpisodes(ctx context.Context, showID int64, seasonNumber int) (*tmdb.SeasonDetails, error) {
	f.seasonCalls++
	return f.season, f.seasonErr
}

func TestResolveEntryMovie(t *testing.T) {
	finder := &fakeFinder{
		findResponse: &tmdb.FindResponse{
			MovieResults: []tmdb.Title{{ID: 603}},
		},
		movie: &tmdb.Title{ID: 603, Title: "The Matrix", MediaType: "movie"},
	}
	resolver := NewResolver(finder, nil)

	entry := resolver.ResolveEntry(context.Background(), "tt0133093")
	if entry.Kind != KindMovie {
		t.Fatalf("Kind = %q, want movie", entry.Kind)
	}
	if entry.Title.Title != "The Matrix" {
		t.Errorf("Title = %q", entry.Title.Title)
	}
}

func TestResolveEntryShow(t *testing.T) {
	finder := &fakeFinder{
		findResponse: &tmdb.FindResponse{
			TVResults: []tmdb.Title{{ID: 1396}},
		},
		show: &tmdb.Title{ID: 1396, Name: "Breaking Bad", MediaType: "tv"},
	}
	resolver := NewResolver(finder, nil)

	entry := resolver.ResolveEntry(context.Background(), "tt0903747")
	if entry.Kind != KindShow {
		t.Fatalf("Kind = %q, want show", entry.Kind)
	}
	if entry.Title.Name != "Breaking Bad" {
		t.Errorf("Name = %q", entry.Title.Name)
	}
}

func TestResolveEntryEpisodeMapsToParentShow(t *testing.T) {
	finder := &fakeFinder{
		findResponse: &tmdb.FindResponse{
			TVEpisodeResults: []tmdb.Title{{ID: 62085, ShowID: 1396, EpisodeNumber: 2}},
		},
		show: &tmdb.Title{ID: 1396, Name: "Breaking Bad", MediaType: "tv"},
	}
	resolver := NewResolver(finder, nil)

	entry := resolver.ResolveEntry(context.Background(), "tt0959621")
	if entry.Kind != KindShow {
		t.Fatalf("Kind = %q, want show", entry.Kind)
	}
	if entry.Title.ID != 1396 {
		t.Errorf("show id = %d, want 1396", entry.Title.ID)
	}
}

func TestResolveEntryMovieBucketWinsOverTV(t *testing.T) {
	finder := &fakeFinder{
		findResponse: &tmdb.FindResponse{
			MovieResults: []tmdb.Title{{ID: 603}},
			TVResults:    []tmdb.Title{{ID: 1396}},
		},
		movie: &tmdb.Title{ID: 603, Title: "The Matrix"},
	}
	resolver := NewResolver(finder, nil)

	if entry := resolver.ResolveEntry(context.Background(), "tt0133093"); entry.Kind != KindMovie {
		t.Errorf("Kind = %q, want movie bucket to win", entry.Kind)
	}
}

func TestResolveEntryEmptyOnFailure(t *testing.T) {
	resolver := NewResolver(&fakeFinder{findErr: errors.New("tmdb down")}, nil)
	if entry := resolver.ResolveEntry(context.Background(), "tt0133093"); !entry.Empty() {
		t.Errorf("expected empty entry on lookup failure, got kind %q", entry.Kind)
	}

	resolver = NewResolver(&fakeFinder{
		findResponse: &tmdb.FindResponse{MovieResults: []tmdb.Title{{ID: 603}}},
		movieErr:     errors.New("tmdb down"),
	}, nil)
	if entry := resolver.ResolveEntry(context.Background(), "tt0133093"); !entry.Empty() {
		t.Errorf("expected empty entry on detail failure, got kind %q", entry.Kind)
	}

	resolver = NewResolver(&fakeFinder{findResponse: &tmdb.FindResponse{}}, nil)
	if entry := resolver.ResolveEntry(context.Background(), "tt0133093"); !entry.Empty() {
		t.Errorf("expected empty entry for empty buckets, got kind %q", entry.Kind)
	}
}

func TestResolveEpisodes(t *testing.T) {
	finder := &fakeFinder{
		findResponse: &tmdb.FindResponse{TVResults: []tmdb.Title{{ID: 1396}}},
		show:         &tmdb.Title{ID: 1396, Name: "Breaking Bad"},
		season: &tmdb.SeasonDetails{
			SeasonNumber: 1,
			Episodes:     []tmdb.Episode{{EpisodeNumber: 1, Name: "Pilot"}},
		},
	}
	resolver := NewResolver(finder, nil)

	resolution := resolver.ResolveEpisodes(context.Background(), "tt0903747", 1)
	if resolution == nil {
		t.Fatal("ResolveEpisodes() = nil")
	}
	if resolution.Show.Kind != KindShow {
		t.Errorf("show kind = %q", resolution.Show.Kind)
	}
	if resolution.Season == nil || len(resolution.Season.Episodes) != 1 {
		t.Fatalf("season detail = %+v", resolution.Season)
	}
}

func TestResolveEpisodesSkipsSeasonLookupWithoutNumber(t *testing.T) {
	finder := &fakeFinder{
		findResponse: &tmdb.FindResponse{TVResults: []tmdb.Title{{ID: 1396}}},
		show:         &tmdb.Title{ID: 1396, Name: "Breaking Bad"},
	}
	resolver := NewResolver(finder, nil)

	resolution := resolver.ResolveEpisodes(context.Background(), "tt0903747", 0)
	if resolution == nil {
		t.Fatal("ResolveEpisodes() = nil")
	}
	if resolution.Season != nil {
		t.Error("expected nil season detail")
	}
	if finder.seasonCalls != 0 {
		t.Errorf("seasonCalls = %d, want 0", finder.seasonCalls)
	}
}

func TestResolveEpisodesNilWhenShowUnresolvable(t *testing.T) {
	resolver := NewResolver(&fakeFinder{findErr: errors.New("tmdb down")}, nil)
	if got := resolver.ResolveEpisodes(context.Background(), "tt0903747", 1); got != nil {
		t.Errorf("ResolveEpisodes() = %+v, want nil", got)
	}

	// A movie identifier does not resolve into a show structure.
	resolver = NewResolver(&fakeFinder{
		findResponse: &tmdb.FindResponse{MovieResults: []tmdb.Title{{ID: 603}}},
		movie:        &tmdb.Title{ID: 603, Title: "The Matrix"},
	}, nil)
	if got := resolver.ResolveEpisodes(context.Background(), "tt0133093", 1); got != nil {
		t.Errorf("ResolveEpisodes() for movie = %+v, want nil", got)
	}
}

func TestResolveEpisodesToleratesSeasonFailure(t *testing.T) {
	finder := &fakeFinder{
		findResponse: &tmdb.FindResponse{TVResults: []tmdb.Title{{ID: 1396}}},
		show:         &tmdb.Title{ID: 1396, Name: "Breaking Bad"},
		seasonErr:    errors.New("tmdb down"),
	}
	resolver := NewResolver(finder, nil)

	resolution := resolver.ResolveEpisodes(context.Background(), "tt0903747", 1)
	if resolution == nil {
		t.Fatal("ResolveEpisodes() = nil")
	}
	if resolution.Season != nil {
		t.Error("expected nil season detail on lookup failure")
	}
}
