package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func baseInstall(t *testing.T, version string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "StreamingAssets/VersionNumbers.json",
		`{"CurrentVersion": "`+version+`", "MinimumSaveVersion": "0.5.0"}`)
	return dir
}

func TestDiscover_BaseOnly(t *testing.T) {
	dir := baseInstall(t, "7.1.2")

	layout, err := Discover(zap.NewNop(), []string{dir}, nil)
	require.NoError(t, err)

	require.Len(t, layout.Sources, 1)
	require.True(t, layout.Sources[0].IsBase())
	require.Equal(t, []int{7, 1, 2}, layout.GameVersion)
	require.Contains(t, layout.Versions, BaseID)
}

func TestDiscover_OverlayOrderBecomesPriority(t *testing.T) {
	base := baseInstall(t, "7.1.2")
	modA, modB := t.TempDir(), t.TempDir()
	writeFile(t, modA, "manifest.json", `{"Id": "AlphaMod", "Name": "Alpha", "Version": "1.0"}`)
	writeFile(t, modB, "manifest.json", `{"Id": "BetaMod", "Name": "Beta", "Version": "2.0"}`)

	layout, err := Discover(zap.NewNop(), []string{base}, []string{modA, modB})
	require.NoError(t, err)

	require.Len(t, layout.Sources, 3)
	require.Equal(t, "alphamod", layout.Sources[1].Name)
	require.Equal(t, 1, layout.Sources[1].Priority)
	require.Equal(t, "betamod", layout.Sources[2].Name)
	require.Equal(t, 2, layout.Sources[2].Priority)
	require.Equal(t, []string{BaseID, "alphamod", "betamod"}, layout.SortedVersionIDs())
}

func TestDiscover_DuplicatePackageIsFatal(t *testing.T) {
	base := baseInstall(t, "7.0.0")
	modA, modB := t.TempDir(), t.TempDir()
	writeFile(t, modA, "manifest.json", `{"Id": "SameMod", "Version": "1.0"}`)
	writeFile(t, modB, "manifest.json", `{"Id": "samemod", "Version": "2.0"}`)

	_, err := Discover(zap.NewNop(), []string{base}, []string{modA, modB})
	require.Error(t, err)
	require.Contains(t, err.Error(), "loaded twice")
}

func TestDiscover_VersionedOverlayPicksNewestCompatible(t *testing.T) {
	base := baseInstall(t, "7.1.0")
	mod := t.TempDir()
	writeFile(t, mod, "version-6.0/manifest.json", `{"Id": "VMod", "Version": "6.0"}`)
	writeFile(t, mod, "version-7.0/manifest.json", `{"Id": "VMod", "Version": "7.0"}`)
	writeFile(t, mod, "version-8.0/manifest.json", `{"Id": "VMod", "Version": "8.0"}`)

	layout, err := Discover(zap.NewNop(), []string{base}, []string{mod})
	require.NoError(t, err)

	require.Len(t, layout.Sources, 2)
	require.True(t, strings.HasSuffix(layout.Sources[1].Dir, "version-7.0"),
		"picked %s, want the version-7.0 payload", layout.Sources[1].Dir)
}

func TestDiscover_OverlayWithoutManifestIsSkipped(t *testing.T) {
	base := baseInstall(t, "7.0.0")
	mod := t.TempDir() // no manifest.json

	layout, err := Discover(zap.NewNop(), []string{base}, []string{mod})
	require.NoError(t, err)
	require.Len(t, layout.Sources, 1)
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b []int
		want int
	}{
		{[]int{7, 1}, []int{7, 1}, 0},
		{[]int{7, 1}, []int{7, 1, 0}, 0},
		{[]int{7, 0}, []int{7, 1}, -1},
		{[]int{7, 1, 1}, []int{7, 1}, 1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
