package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"github.com/yourusername/yuna-go/internal/domain"
)

var (
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	repeatedSpace    = regexp.MustCompile(`\s+`)
	episodeNumber    = regexp.MustCompile(`(?i)(?:episode\s+|E)(\d+)\.[a-z0-9]+$`)
)

// LibraryFiles owns the on-disk layout of the library
type LibraryFiles struct {
	fs     afero.Fs
	config domain.LibraryConfig
}

// NewLibraryFiles creates the layout helper
func NewLibraryFiles(fs afero.Fs, config domain.LibraryConfig) *LibraryFiles {
	return &LibraryFiles{fs: fs, config: config}
}

// SanitizeName makes a title safe to use as a file or directory name
func SanitizeName(name string) string {
	name = invalidNameChars.ReplaceAllString(name, "")
	name = repeatedSpace.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")
	if name == "" {
		return "untitled"
	}
	return name
}

// EntryDir is the folder holding every file of an entry
func (lf *LibraryFiles) EntryDir(entry *domain.LibraryEntry) string {
	return filepath.Join(lf.config.DirFor(entry.Kind), SanitizeName(entry.Name))
}

// Destination returns where a resolved unit should be written
func (lf *LibraryFiles) Destination(entry *domain.LibraryEntry, stream *domain.ResolvedStream) string {
	name := SanitizeName(entry.Name)
	dir := lf.EntryDir(entry)

	switch {
	case entry.Kind == domain.KindFilm || stream == nil || stream.Episode == nil:
		return filepath.Join(dir, name+".mp4")
	case stream.Season > 0:
		ep := stream.EpisodeInSeason
		if ep == 0 {
			ep = *stream.Episode
		}
		seasonDir := filepath.Join(dir, fmt.Sprintf("Season %02d", stream.Season))
		return filepath.Join(seasonDir, fmt.Sprintf("%s S%02dE%02d.mp4", name, stream.Season, ep))
	default:
		return filepath.Join(dir, fmt.Sprintf("%s - Episode %d.mp4", name, *stream.Episode))
	}
}

// EnsureEntryDir creates the entry folder
func (lf *LibraryFiles) EnsureEntryDir(entry *domain.LibraryEntry) (string, error) {
	dir := lf.EntryDir(entry)
	if err := lf.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveEntry deletes the entry folder and everything in it
func (lf *LibraryFiles) RemoveEntry(entry *domain.LibraryEntry) error {
	dir := lf.EntryDir(entry)
	base := filepath.Clean(lf.config.DirFor(entry.Kind))
	if filepath.Clean(dir) == base || !strings.HasPrefix(filepath.Clean(dir), base+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to remove %s outside %s", dir, base)
	}
	if err := lf.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}

// CountEpisodes counts non-empty episode files on disk for an entry
func (lf *LibraryFiles) CountEpisodes(entry *domain.LibraryEntry) (int, error) {
	dir := lf.EntryDir(entry)
	if exists, err := afero.DirExists(lf.fs, dir); err != nil || !exists {
		return 0, err
	}

	count := 0
	err := afero.Walk(lf.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Size() == 0 || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		if episodeNumber.MatchString(info.Name()) {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
