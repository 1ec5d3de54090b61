package identification

import (
	"context"
	"errors"
	"testing"

	"substream/internal/media"
	"substream/internal/media/ffprobe"
)

func probeReturning(result ffprobe.Result) ProbeFunc {
	return func(ctx context.Context, path string) (ffprobe.Result, error) {
		return result, nil
	}
}

func TestExtractEpisodeFromFileName(t *testing.T) {
	extractor := NewExtractor(probeReturning(ffprobe.Result{}), nil)

	meta := extractor.Extract(context.Background(), "/media/Show.S01E02.mkv")
	if meta.Category != media.CategoryTV {
		t.Errorf("Category = %q, want TV", meta.Category)
	}
	if meta.Season != "01" || meta.Episode != "02" {
		t.Errorf("season/episode = %q/%q, want 01/02", meta.Season, meta.Episode)
	}
	if meta.EpisodeHint != "S01 E02" {
		t.Errorf("EpisodeHint = %q", meta.EpisodeHint)
	}
	if meta.Title != "Show" {
		t.Errorf("Title = %q, want Show", meta.Title)
	}
	if meta.VideoFormat != "mkv" {
		t.Errorf("VideoFormat = %q, want mkv", meta.VideoFormat)
	}
	if meta.SeasonNumber() != 1 || meta.EpisodeNumber() != 2 {
		t.Errorf("numeric season/episode = %d/%d", meta.SeasonNumber(), meta.EpisodeNumber())
	}
}

func TestExtractPrefersStreamTagTitle(t *testing.T) {
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{{
			CodecType: "video",
			Tags:      ffprobe.Tags{Title: "The Matrix"},
		}},
		Format: ffprobe.Format{Tags: ffprobe.Tags{Title: "container title"}},
	}
	extractor := NewExtractor(probeReturning(result), nil)

	meta := extractor.Extract(context.Background(), "/media/some.file.1080p.mkv")
	if meta.Title != "The Matrix" {
		t.Errorf("Title = %q, want The Matrix", meta.Title)
	}
	if meta.Category != media.CategoryMovie {
		t.Errorf("Category = %q, want MOVIE", meta.Category)
	}
}

func TestExtractFallsBackToContainerTagTitle(t *testing.T) {
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video"}},
		Format:  ffprobe.Format{Tags: ffprobe.Tags{Title: "Container Movie"}},
	}
	extractor := NewExtractor(probeReturning(result), nil)

	meta := extractor.Extract(context.Background(), "/media/whatever.mp4")
	if meta.Title != "Container Movie" {
		t.Errorf("Title = %q, want Container Movie", meta.Title)
	}
}

func TestExtractDegradesOnProbeFailure(t *testing.T) {
	failing := func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("ffprobe exploded")
	}
	extractor := NewExtractor(failing, nil)

	meta := extractor.Extract(context.Background(), "/media/Fallback.Movie.2021.1080p.mkv")
	if meta.Title != "Fallback Movie 2021" {
		t.Errorf("Title = %q, want Fallback Movie 2021", meta.Title)
	}
	if meta.Category != media.CategoryMovie {
		t.Errorf("Category = %q, want MOVIE", meta.Category)
	}
	if meta.HasEpisode() {
		t.Error("expected no episode info in degraded record")
	}
	if meta.FileName != "Fallback.Movie.2021.1080p.mkv" {
		t.Errorf("FileName = %q", meta.FileName)
	}
}

func TestExtractDegradedSkipsEpisodePatterns(t *testing.T) {
	failing := func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("ffprobe exploded")
	}
	extractor := NewExtractor(failing, nil)

	// An episode-coded name still degrades to a flat movie record: without
	// stream data the episode heuristics are not applied.
	meta := extractor.Extract(context.Background(), "/media/Show.S01E02.mkv")
	if meta.Category != media.CategoryMovie {
		t.Errorf("Category = %q, want MOVIE", meta.Category)
	}
	if meta.HasEpisode() {
		t.Errorf("season/episode = %q/%q, want none", meta.Season, meta.Episode)
	}
	if meta.EpisodeHint != "" {
		t.Errorf("EpisodeHint = %q, want empty", meta.EpisodeHint)
	}
	if meta.Title != "Show S01E02" {
		t.Errorf("Title = %q, want full sanitized file name", meta.Title)
	}
	if meta.DurationSec != 0 {
		t.Errorf("DurationSec = %d, want 0", meta.DurationSec)
	}
}

func TestExtractRecordsDuration(t *testing.T) {
	result := ffprobe.Result{Format: ffprobe.Format{Duration: "5403.52"}}
	extractor := NewExtractor(probeReturning(result), nil)

	meta := extractor.Extract(context.Background(), "/media/Long.Movie.mkv")
	if meta.DurationSec != 5403 {
		t.Errorf("DurationSec = %d, want 5403", meta.DurationSec)
	}
}

func TestExtractDisplayTitleIsCased(t *testing.T) {
	extractor := NewExtractor(probeReturning(ffprobe.Result{}), nil)

	meta := extractor.Extract(context.Background(), "/media/the.quiet.place.mkv")
	if meta.DisplayTitle != "The Quiet Place" {
		t.Errorf("DisplayTitle = %q, want The Quiet Place", meta.DisplayTitle)
	}
}
