package textutil

import (
	"regexp"
	"strings"
)

// ripTagPattern matches encoding, rip, and quality tokens commonly embedded
// in release file names: resolutions, codecs, source-rip markers, bitrate
// figures, and container extensions.
var ripTagPattern = regexp.MustCompile(`(?im)x264|BluRay|Blu Ray|x265|mp4|mkv|mov|avi|DEFLATE|720p|1080p|2160p|HDR|4k|10-bit|5 1|DTS|AAC|\d{0,5}\s+kbps|HD|WEB-?DL|\w*[Rr]ip\b`)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// SanitizeTitle normalizes a raw file name or embedded stream title into a
// clean search string. Dots become spaces, known rip tags are removed,
// remaining punctuation is stripped, and whitespace is collapsed. The result
// may be empty; sanitization never fails.
func SanitizeTitle(title string) string {
	cleaned := strings.ReplaceAll(title, ".", " ")
	cleaned = ripTagPattern.ReplaceAllString(cleaned, "")
	cleaned = nonAlphanumeric.ReplaceAllString(cleaned, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// FirstWords returns at most n leading whitespace-separated words of s.
func FirstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
