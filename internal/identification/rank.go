package identification

import (
	"regexp"
	"strings"

	"substream/internal/services/bing"
)

var imdbTokenPattern = regexp.MustCompile(`^tt[0-9]+$`)

// RankCandidates selects the best display URL from a web search result list.
// Results whose site label or name does not mention IMDb are discarded; the
// remaining display URLs are tallied and the URL with the highest occurrence
// count wins. Ties break to the URL that reached the maximum first in list
// order, which keeps ranking deterministic for a given input. Returns ""
// when no IMDb-flagged candidate exists.
func RankCandidates(results []bing.Result) string {
	counts := make(map[string]int)
	var best string
	bestCount := 0
	for _, result := range results {
		if !strings.Contains(strings.ToLower(result.SiteName), "imdb") &&
			!strings.Contains(strings.ToLower(result.Name), "imdb") {
			continue
		}
		counts[result.DisplayURL]++
		if counts[result.DisplayURL] > bestCount {
			best = result.DisplayURL
			bestCount = counts[result.DisplayURL]
		}
	}
	return best
}

// ExtractIMDbID pulls the IMDb title token out of a display URL by splitting
// on "/" and returning the first path segment of the form tt<digits>.
func ExtractIMDbID(displayURL string) string {
	for _, segment := range strings.Split(displayURL, "/") {
		if imdbTokenPattern.MatchString(segment) {
			return segment
		}
	}
	return ""
}

// IdentifyIMDbID combines ranking and token extraction. An empty return
// means the search results contained no identifiable candidate.
func IdentifyIMDbID(results []bing.Result) string {
	top := RankCandidates(results)
	if top == "" {
		return ""
	}
	return ExtractIMDbID(top)
}
