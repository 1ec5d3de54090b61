// Package tmdb provides a client for The Movie Database API covering the
// lookups the catalog resolver needs: find-by-IMDb-id, movie and TV detail
// fetches, and season episode listings.
package tmdb
