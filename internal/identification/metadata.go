package identification

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"substream/internal/episodeid"
	"substream/internal/logging"
	"substream/internal/media"
	"substream/internal/media/ffprobe"
	"substream/internal/textutil"
)

var titleCaser = cases.Title(language.Und)

// BasicMetadata is the normalized intermediate record derived from a media
// file before any external lookups happen.
type BasicMetadata struct {
	Title        string
	DisplayTitle string
	FileName     string
	VideoFormat  string
	Category     media.Category
	Season       string
	Episode      string
	EpisodeHint  string
	DurationSec  int
}

// HasEpisode reports whether both season and episode numbers were extracted.
func (m BasicMetadata) HasEpisode() bool {
	return m.Season != "" && m.Episode != ""
}

// SeasonNumber returns the extracted season as an integer, or 0.
func (m BasicMetadata) SeasonNumber() int {
	return parseNumber(m.Season)
}

// EpisodeNumber returns the extracted episode as an integer, or 0.
func (m BasicMetadata) EpisodeNumber() int {
	return parseNumber(m.Episode)
}

func parseNumber(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

// ProbeFunc inspects a media file and returns its technical stream/format
// data. It matches ffprobe.Inspect with the binary bound.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Extractor derives BasicMetadata from files on disk.
type Extractor struct {
	probe  ProbeFunc
	logger *slog.Logger
}

// NewExtractor creates an extractor around the given probe function. A nil
// probe falls back to running the ffprobe binary from PATH.
func NewExtractor(probe ProbeFunc, logger *slog.Logger) *Extractor {
	if probe == nil {
		probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, "ffprobe", path)
		}
	}
	return &Extractor{
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "identification"),
	}
}

// Extract probes the file and derives title, category, and episode heuristics.
// Probe failures degrade to a file-name-only record; this step never fails.
func (e *Extractor) Extract(ctx context.Context, path string) BasicMetadata {
	fileName := filepath.Base(path)
	meta := BasicMetadata{
		FileName:    fileName,
		VideoFormat: strings.TrimPrefix(filepath.Ext(fileName), "."),
		Category:    media.CategoryMovie,
	}

	rawTitle := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	result, err := e.probe(ctx, path)
	if err != nil {
		// Degraded record: file name as title, MOVIE, no episode
		// heuristics. Without stream data the episode patterns cannot be
		// trusted, so the file is treated as an unstructured movie.
		e.logger.Warn("probe failed, using file name",
			logging.String("path", path),
			logging.Error(err))
		title := textutil.SanitizeTitle(rawTitle)
		meta.Title = title
		meta.DisplayTitle = titleCaser.String(title)
		return meta
	}

	if stream := result.FirstVideoStream(); stream != nil && stream.Tags.Title != "" {
		rawTitle = stream.Tags.Title
	} else if result.Format.Tags.Title != "" {
		rawTitle = result.Format.Tags.Title
	}
	meta.DurationSec = int(result.DurationSeconds())

	title := textutil.SanitizeTitle(rawTitle)
	match := episodeid.Extract(title)
	if match.Found() {
		meta.Category = media.CategoryTV
		meta.Season = match.Season
		meta.Episode = match.Episode
	}
	if meta.HasEpisode() {
		// Episode codes over-constrain web search; a short title plus a
		// separate season/episode hint broadens recall.
		meta.EpisodeHint = fmt.Sprintf("S%s E%s", meta.Season, meta.Episode)
		title = textutil.FirstWords(strings.TrimSpace(strings.Replace(title, match.FullMatch, "", 1)), 2)
	}
	meta.Title = title
	meta.DisplayTitle = titleCaser.String(title)
	return meta
}
