// Package testsupport provides canned collaborator fakes shared by tests
// across packages.
package testsupport

import (
	"context"
	"sync"

	"substream/internal/identification"
	"substream/internal/identification/tmdb"
	"substream/internal/media/ffprobe"
	"substream/internal/services/bing"
)

// Searcher is a canned bing.Searcher.
type Searcher struct {
	mu      sync.Mutex
	Results []bing.Result
	Err     error
	Queries []string
}

func (s *Searcher) Search(ctx context.Context, query string) ([]bing.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, query)
	return s.Results, s.Err
}

// Finder is a canned tmdb.Finder.
type Finder struct {
	FindResponse *tmdb.FindResponse
	FindErr      error
	Movie        *tmdb.Title
	MovieErr     error
	Show         *tmdb.Title
	ShowErr      error
	Season       *tmdb.SeasonDetails
	SeasonErr    error
}

func (f *Finder) FindByIMDbID(ctx context.Context, imdbID string) (*tmdb.FindResponse, error) {
	return f.FindResponse, f.FindErr
}

func (f *Finder) MovieDetails(ctx context.Context, movieID int64) (*tmdb.Title, error) {
	return f.Movie, f.MovieErr
}

func (f *Finder) TVDetails(ctx context.Context, showID int64) (*tmdb.Title, error) {
	return f.Show, f.ShowErr
}

func (f *Finder) SeasonEpisodes(ctx context.Context, showID int64, seasonNumber int) (*tmdb.SeasonDetails, error) {
	return f.Season, f.SeasonErr
}

// StaticProbe returns a probe function that always yields the given result.
func StaticProbe(result ffprobe.Result) identification.ProbeFunc {
	return func(ctx context.Context, path string) (ffprobe.Result, error) {
		return result, nil
	}
}

// IMDbResult builds a single IMDb-flagged search hit for the given title URL.
func IMDbResult(url string) []bing.Result {
	return []bing.Result{{Name: "Title - IMDb", DisplayURL: url, SiteName: "IMDb"}}
}

// MovieFinder cans a find-by-imdb-id response resolving to one movie.
func MovieFinder(id int64, title string) *Finder {
	return &Finder{
		FindResponse: &tmdb.FindResponse{MovieResults: []tmdb.Title{{ID: id}}},
		Movie:        &tmdb.Title{ID: id, Title: title, MediaType: "movie"},
	}
}

// ShowFinder cans a find-by-imdb-id response resolving to one show with a
// single-season episode list.
func ShowFinder(id int64, name string, season *tmdb.SeasonDetails) *Finder {
	return &Finder{
		FindResponse: &tmdb.FindResponse{TVResults: []tmdb.Title{{ID: id}}},
		Show:         &tmdb.Title{ID: id, Name: name, MediaType: "tv"},
		Season:       season,
	}
}
