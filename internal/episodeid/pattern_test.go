package episodeid

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		season      string
		episode     string
		fullMatch   string
		shouldMatch bool
	}{
		{"compact", "Show S01E02", "01", "02", "S01E02", true},
		{"compact with ep", "Show s2ep13", "2", "13", "s2ep13", true},
		{"compact dotted", "Show S01.E04", "01", "04", "S01.E04", true},
		{"verbose", "Show season 3 episode 7", "3", "7", "season 3 episode 7", true},
		{"numeric", "Show 1x05", "1", "05", "1x05", true},
		{"no marker", "Just A Movie 2019", "", "", "", false},
		{"empty", "", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.title)
			if got.Found() != tt.shouldMatch {
				t.Fatalf("Extract(%q).Found() = %v, want %v", tt.title, got.Found(), tt.shouldMatch)
			}
			if got.Season != tt.season || got.Episode != tt.episode {
				t.Fatalf("Extract(%q) = season %q episode %q, want %q/%q", tt.title, got.Season, got.Episode, tt.season, tt.episode)
			}
			if got.FullMatch != tt.fullMatch {
				t.Fatalf("Extract(%q).FullMatch = %q, want %q", tt.title, got.FullMatch, tt.fullMatch)
			}
		})
	}
}

func TestExtractPriorityOrder(t *testing.T) {
	// Both the compact and numeric families could match; the compact family
	// wins because it is tried first.
	got := Extract("Show S01E02 also known as 1x02")
	if got.Season != "01" || got.Episode != "02" || got.FullMatch != "S01E02" {
		t.Fatalf("expected compact family to win, got %+v", got)
	}
}
