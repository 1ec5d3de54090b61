package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestIsMediaFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/media/movie.mkv", true},
		{"/media/movie.MP4", true},
		{"/media/clip.avi", true},
		{"/media/clip.mov", true},
		{"/media/notes.txt", false},
		{"/media/archive.mkv.part", false},
		{"/media/noext", false},
	}
	for _, tt := range tests {
		if got := IsMediaFile(tt.path); got != tt.want {
			t.Errorf("IsMediaFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestListMediaFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.mkv"))
	touch(t, filepath.Join(dir, "a.mp4"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "shows", "pilot.avi"))
	touch(t, filepath.Join(dir, ".stage", "hidden.mkv"))

	files, err := ListMediaFiles(dir)
	if err != nil {
		t.Fatalf("ListMediaFiles() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.mp4"),
		filepath.Join(dir, "b.mkv"),
		filepath.Join(dir, "shows", "pilot.avi"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestListMediaFilesMissingDir(t *testing.T) {
	if _, err := ListMediaFiles(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("ListMediaFiles() on missing dir succeeded, want error")
	}
}
