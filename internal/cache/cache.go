// Package cache persists the resolved model between runs. The cache file is
// keyed by a digest of the loaded version manifests: any version change, mod
// added or removed, misses and forces a full rebuild. The snapshot's
// serialization is deterministic, so a round-trip reproduces it exactly.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"timbertrees/internal/document"
	"timbertrees/internal/model"
)

// Key folds the version-manifest set into a short stable digest. The sha256
// of the canonical serialization is xor-compressed to keep the cache filename
// readable.
func Key(versions map[string]document.Value) string {
	ids := make([]string, 0, len(versions))
	for id := range versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(versions[id].String()))
		h.Write([]byte{0})
	}
	digest := h.Sum(nil)

	short := make([]byte, 0, len(digest)/4)
	for i := 0; i+4 <= len(digest); i += 4 {
		short = append(short, digest[i]^digest[i+1]^digest[i+2]^digest[i+3])
	}
	return hex.EncodeToString(short)
}

// Path returns the cache file location for a key.
func Path(dir, key string) string {
	return filepath.Join(dir, ".cache."+key+".json")
}

// Load reads a cached snapshot. Any failure, missing file, corrupt JSON, or
// a version-manifest mismatch, is a miss, never an error: the caller rebuilds.
func Load(log *zap.Logger, path string, versions map[string]document.Value) (*model.Snapshot, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn("discarding corrupt cache file", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	if !sameVersions(snap.Versions, versions) {
		log.Info("cache is for a different version set, rebuilding", zap.String("path", path))
		return nil, false
	}
	log.Info("loaded resolved model from cache", zap.String("path", path))
	return &snap, true
}

// Store writes the snapshot atomically: a rename from a temp file so a
// crashed run never leaves a torn cache behind.
func Store(log *zap.Logger, path string, snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	log.Info("cached resolved model", zap.String("path", path))
	return nil
}

func sameVersions(a, b map[string]document.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for id, v := range a {
		other, ok := b[id]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}
