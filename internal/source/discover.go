package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"timbertrees/internal/document"
)

const (
	baseManifest    = "StreamingAssets/VersionNumbers.json"
	overlayManifest = "manifest.json"

	// BaseID is the Versions key the base install registers under; its
	// manifest carries no Id of its own.
	BaseID = "timberborn"
)

// Layout is the discovered run input: every content root in load order plus
// the version manifest each one contributed.
type Layout struct {
	Sources     []Source
	Versions    map[string]document.Value
	GameVersion []int
}

// Discover expands the configured directories into the run layout. Exactly
// one base install is required; overlay directories are optional and keep
// their configured order, which becomes their merge priority. An overlay
// holding versioned subdirectories ("version-X.Y") contributes the newest one
// that is not ahead of the game version.
func Discover(log *zap.Logger, dataDirs, modDirs []string) (*Layout, error) {
	baseDirs, err := expandDirs(dataDirs)
	if err != nil {
		return nil, err
	}
	if len(baseDirs) != 1 {
		return nil, fmt.Errorf("want exactly one base data directory, found %d: %v", len(baseDirs), baseDirs)
	}

	base, err := readManifest(filepath.Join(baseDirs[0], filepath.FromSlash(baseManifest)))
	if err != nil {
		return nil, fmt.Errorf("base install %s: %w", baseDirs[0], err)
	}
	current, _ := base.Field("CurrentVersion")
	gameVersion, err := parseVersion(current.AsString())
	if err != nil {
		return nil, fmt.Errorf("base install %s: bad CurrentVersion: %w", baseDirs[0], err)
	}
	log.Info("loading base install",
		zap.String("dir", baseDirs[0]), zap.String("version", current.AsString()))

	layout := &Layout{
		Sources:     []Source{{Dir: baseDirs[0], Name: BaseID, Priority: 0}},
		Versions:    map[string]document.Value{BaseID: base},
		GameVersion: gameVersion,
	}

	modDirList, err := expandDirs(modDirs)
	if err != nil {
		return nil, err
	}
	for _, dir := range modDirList {
		dir, err := selectModVersion(log, dir, gameVersion)
		if err != nil {
			return nil, err
		}
		if dir == "" {
			continue
		}
		manifest, err := readManifest(filepath.Join(dir, overlayManifest))
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn("overlay has no manifest, skipping", zap.String("dir", dir))
				continue
			}
			return nil, fmt.Errorf("overlay %s: %w", dir, err)
		}
		idField, _ := manifest.Field("Id")
		id := strings.ToLower(idField.AsString())
		if id == "" {
			return nil, fmt.Errorf("overlay %s: manifest has no Id", dir)
		}
		if _, dup := layout.Versions[id]; dup {
			return nil, fmt.Errorf("overlay package %q loaded twice", id)
		}
		name, _ := manifest.Field("Name")
		version, _ := manifest.Field("Version")
		log.Info("loading overlay",
			zap.String("id", id), zap.String("name", name.AsString()),
			zap.String("version", version.AsString()))

		layout.Versions[id] = manifest
		layout.Sources = append(layout.Sources, Source{
			Dir: dir, Name: id, Priority: len(layout.Sources),
		})
	}
	return layout, nil
}

// expandDirs resolves environment variables and glob patterns in the
// configured paths. Every pattern must match something.
func expandDirs(patterns []string) ([]string, error) {
	var dirs []string
	for _, p := range patterns {
		expanded := os.ExpandEnv(p)
		if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(expanded, "~") {
			expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
		}
		matches, err := filepath.Glob(expanded)
		if err != nil {
			return nil, fmt.Errorf("bad directory pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("directory pattern %q matched nothing", p)
		}
		dirs = append(dirs, matches...)
	}
	return dirs, nil
}

// selectModVersion descends into the newest compatible "version-X.Y"
// subdirectory when the overlay ships versioned payloads. An overlay whose
// versions are all ahead of the game is skipped (returned as empty).
func selectModVersion(log *zap.Logger, dir string, gameVersion []int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("overlay %s: %w", dir, err)
	}
	var best []int
	var bestName string
	var versioned bool
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(strings.ToLower(e.Name()), "version-") {
			continue
		}
		versioned = true
		v, err := parseVersion(e.Name()[len("version-"):])
		if err != nil {
			log.Warn("ignoring malformed version directory",
				zap.String("dir", dir), zap.String("entry", e.Name()))
			continue
		}
		if compareVersions(v, gameVersion) > 0 {
			continue
		}
		if best == nil || compareVersions(v, best) > 0 {
			best, bestName = v, e.Name()
		}
	}
	if !versioned {
		return dir, nil
	}
	if best == nil {
		log.Warn("overlay has no payload for this game version, skipping",
			zap.String("dir", dir))
		return "", nil
	}
	return filepath.Join(dir, bestName), nil
}

func readManifest(path string) (document.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Value{}, err
	}
	doc, err := document.FromJSON(stripBOM(data))
	if err != nil {
		return document.Value{}, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Kind() != document.KindMap {
		return document.Value{}, fmt.Errorf("%s: manifest is %s, want map", path, doc.Kind())
	}
	return doc, nil
}

func parseVersion(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	v := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("version %q: %w", s, err)
		}
		v = append(v, n)
	}
	return v, nil
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var ai, bi int
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		if ai != bi {
			if ai < bi {
				return -1
			}
			return 1
		}
	}
	return 0
}

// SortedVersionIDs returns the version-manifest keys in stable order, base
// install first.
func (l *Layout) SortedVersionIDs() []string {
	ids := make([]string, 0, len(l.Versions))
	for id := range l.Versions {
		if id == BaseID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return append([]string{BaseID}, ids...)
}
