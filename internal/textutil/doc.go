// Package textutil provides text normalization helpers for media titles.
package textutil
