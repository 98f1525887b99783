package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
	"timbertrees/internal/model"
)

func versionSet(t *testing.T, base string) map[string]document.Value {
	t.Helper()
	v, err := document.FromJSON([]byte(`{"CurrentVersion": "` + base + `"}`))
	require.NoError(t, err)
	return map[string]document.Value{"timberborn": v}
}

func sampleSnapshot(t *testing.T) *model.Snapshot {
	t.Helper()
	def, err := document.FromJSON([]byte(`{"Id": "log", "GoodSpec": {"StackSize": 30, "Weight": 1.5}}`))
	require.NoError(t, err)
	return &model.Snapshot{
		Versions: versionSet(t, "7.1.2"),
		Goods:    blueprint.Table{"log": def},
		Tools:    map[string]blueprint.Table{model.CommonCollection: {}},
	}
}

func TestKey_Stable(t *testing.T) {
	a, b := Key(versionSet(t, "7.1.2")), Key(versionSet(t, "7.1.2"))
	require.Equal(t, a, b)
	require.Len(t, a, 16)
	require.NotEqual(t, a, Key(versionSet(t, "7.1.3")))
}

func TestRoundTrip(t *testing.T) {
	log := zap.NewNop()
	snap := sampleSnapshot(t)
	path := Path(t.TempDir(), Key(snap.Versions))

	require.NoError(t, Store(log, path, snap))

	loaded, ok := Load(log, path, snap.Versions)
	require.True(t, ok, "stored snapshot should load back")

	got, want := loaded.Goods["log"], snap.Goods["log"]
	if diff := cmp.Diff(want.String(), got.String()); diff != "" {
		t.Errorf("definition changed across the round-trip (-want +got):\n%s", diff)
	}
	spec, _ := got.Field("GoodSpec")
	weight, _ := spec.Field("Weight")
	require.Equal(t, document.KindFloat, weight.Kind(), "float-typed fields must stay floats")
	stack, _ := spec.Field("StackSize")
	require.Equal(t, document.KindInt, stack.Kind(), "int-typed fields must stay ints")
}

func TestLoad_VersionMismatchIsAMiss(t *testing.T) {
	log := zap.NewNop()
	snap := sampleSnapshot(t)
	path := Path(t.TempDir(), "deadbeef")
	require.NoError(t, Store(log, path, snap))

	_, ok := Load(log, path, versionSet(t, "9.9.9"))
	require.False(t, ok)
}

func TestLoad_MissingOrCorrupt(t *testing.T) {
	log := zap.NewNop()
	dir := t.TempDir()

	_, ok := Load(log, filepath.Join(dir, "nope.json"), nil)
	require.False(t, ok)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, ok = Load(log, bad, nil)
	require.False(t, ok)
}
