// Package ffprobe wraps invocation of the ffprobe binary for technical
// metadata extraction from media files.
package ffprobe
