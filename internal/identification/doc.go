// Package identification turns a discovered media file into a resolved
// catalog identity. It extracts technical metadata with ffprobe, ranks web
// search results to find an IMDb title token, and resolves that token into
// full TMDB catalog data for the reconciliation engine.
package identification
