// Package source locates the content roots a run reads from (the base
// install plus overlay packages), loads their version manifests, and streams
// declaration files out of them. Declarations inside the base install ship in
// a zip archive; overlays keep plain directories. Both are exposed through
// io/fs so the scanners never care which one they are walking.
package source

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Source is one content root. Priority is the load index: the base install is
// 0, overlays count up in load order and override on conflict.
type Source struct {
	Dir      string
	Name     string
	Priority int
}

// IsBase reports whether this is the base install root.
func (s Source) IsBase() bool { return s.Priority == 0 }

const (
	blueprintArchive    = "StreamingAssets/Modding/Blueprints.zip"
	localizationArchive = "StreamingAssets/Modding/Localizations.zip"
	localizationDir     = "Localizations"
)

// DeclarationFS opens the root the source's declaration files live under.
// The returned closer must be called when the walk is done; it is a no-op for
// plain directories.
func (s Source) DeclarationFS() (fs.FS, func() error, error) {
	if s.IsBase() {
		return openArchiveOrDir(filepath.Join(s.Dir, filepath.FromSlash(blueprintArchive)), s.Dir)
	}
	return os.DirFS(s.Dir), noClose, nil
}

// LocalizationFS opens the root the source's string tables live under. The
// second result is false when the source ships no localizations at all.
func (s Source) LocalizationFS() (fs.FS, func() error, bool, error) {
	if s.IsBase() {
		archive := filepath.Join(s.Dir, filepath.FromSlash(localizationArchive))
		if _, err := os.Stat(archive); err != nil {
			return nil, nil, false, nil
		}
		fsys, closer, err := openArchive(archive)
		return fsys, closer, err == nil, err
	}
	dir := filepath.Join(s.Dir, localizationDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil, false, nil
	}
	return os.DirFS(dir), noClose, true, nil
}

func openArchiveOrDir(archive, dir string) (fs.FS, func() error, error) {
	if _, err := os.Stat(archive); err == nil {
		return openArchive(archive)
	}
	return os.DirFS(dir), noClose, nil
}

func openArchive(archive string) (fs.FS, func() error, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", archive, err)
	}
	return r, r.Close, nil
}

func noClose() error { return nil }

// stripBOM drops the UTF-8 byte order mark game files routinely start with.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xef && data[1] == 0xbb && data[2] == 0xbf {
		return data[3:]
	}
	return data
}
