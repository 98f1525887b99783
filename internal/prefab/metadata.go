package prefab

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MetaEntry records what one asset GUID identifies: the asset's path under
// the scan root and, for scripts, the type name the asset defines.
type MetaEntry struct {
	Path     string
	TypeName string
}

// Stem returns the asset's file name without directory or extension. Asset
// references that cannot be inlined resolve to this.
func (e MetaEntry) Stem() string {
	base := filepath.Base(e.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MetaTable is the GUID directory built from the companion metadata files
// that sit next to every extracted asset. The resolver consults it to turn
// script references into component type names and asset references into
// stable name pointers.
type MetaTable struct {
	entries map[string]MetaEntry
}

func NewMetaTable() *MetaTable {
	return &MetaTable{entries: make(map[string]MetaEntry)}
}

var metaGUID = regexp.MustCompile(`(?m)^guid:\s*([0-9a-f]{32})\s*$`)

// AddMetaFile registers the asset described by one companion metadata file.
// The asset path is the metadata path without its ".meta" suffix; script
// assets additionally expose their type name. Returns false when the file
// carries no GUID line.
func (t *MetaTable) AddMetaFile(metaPath string, data []byte) bool {
	m := metaGUID.FindSubmatch(data)
	if m == nil {
		return false
	}
	asset := strings.TrimSuffix(metaPath, ".meta")
	entry := MetaEntry{Path: asset}
	if strings.EqualFold(filepath.Ext(asset), ".cs") {
		entry.TypeName = entry.Stem()
	}
	t.Add(string(m[1]), entry)
	return true
}

// Add registers a GUID directly. First registration wins; extracted asset
// trees occasionally carry duplicate metadata for the same GUID.
func (t *MetaTable) Add(guid string, entry MetaEntry) {
	if _, exists := t.entries[guid]; exists {
		return
	}
	t.entries[guid] = entry
}

func (t *MetaTable) Lookup(guid string) (MetaEntry, bool) {
	e, ok := t.entries[guid]
	return e, ok
}

func (t *MetaTable) Len() int { return len(t.entries) }
