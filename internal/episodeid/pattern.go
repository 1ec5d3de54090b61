// Package episodeid detects season/episode markers in media titles.
package episodeid

import "regexp"

// Match holds the season and episode numbers extracted from a title, plus
// the full matched substring. All fields are empty when no pattern matched.
type Match struct {
	Season    string
	Episode   string
	FullMatch string
}

// Pattern families tried in priority order. Only the first family that
// matches is used; there is no merging across families.
var patterns = []*regexp.Regexp{
	// Compact: S01E02, s1ep3, S01.E02
	regexp.MustCompile(`[Ss](\d{1,3})\.?\s?[Ee][Pp]?(\d{1,3})`),
	// Verbose: "season 1 episode 2", "season 1 ep. 2"
	regexp.MustCompile(`(?i)season\s?\.?(\d{1,3})\s?\.?(?:ep\.?|episode)?.*?\s?\.?(\d{1,3})`),
	// Numeric: 1x02
	regexp.MustCompile(`(\d{1,2})x(\d{2})`),
}

// Extract returns the first matching pattern family's season and episode
// numbers as they appear in the title (zero padding preserved). A title with
// no episode marker yields the zero Match.
func Extract(title string) Match {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(title); m != nil {
			return Match{Season: m[1], Episode: m[2], FullMatch: m[0]}
		}
	}
	return Match{}
}

// Found reports whether any pattern family matched.
func (m Match) Found() bool {
	return m.FullMatch != ""
}
