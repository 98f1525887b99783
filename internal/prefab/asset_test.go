package prefab

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"timbertrees/internal/document"
)

const sampleDocument = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &100
GameObject:
  m_Name: Sawmill
  m_Component:
  - component: {fileID: 400}
  - component: {fileID: 114000}
--- !u!4 &400
Transform:
  m_GameObject: {fileID: 100}
--- !u!114 &114000
MonoBehaviour:
  m_GameObject: {fileID: 100}
  m_Script: {fileID: 11500000, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
  _capacity: 5
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument("Sawmill.prefab", []byte(sampleDocument))
	require.NoError(t, err)

	if doc.Root.Anchor != 100 || doc.Root.ClassName != "GameObject" {
		t.Errorf("root = &%d %s, want &100 GameObject", doc.Root.Anchor, doc.Root.ClassName)
	}
	if doc.Pool.Len() != 2 {
		t.Errorf("pool holds %d entries, want 2 (root taken out)", doc.Pool.Len())
	}
	name, _ := doc.Root.Body().Field("m_Name")
	if name.AsString() != "Sawmill" {
		t.Errorf("root name = %s, want Sawmill", name)
	}
}

func TestParseDocument_NegativeAnchor(t *testing.T) {
	src := "--- !u!1 &-8679921383154817045\nGameObject:\n  m_Name: Flip\n"
	doc, err := ParseDocument("Flip.prefab", []byte(src))
	require.NoError(t, err)
	require.Equal(t, int64(-8679921383154817045), doc.Root.Anchor)
}

func TestParseDocument_NoRootIsFatal(t *testing.T) {
	src := "--- !u!114 &1\nMonoBehaviour:\n  _x: 1\n"
	_, err := ParseDocument("orphan.prefab", []byte(src))
	if err == nil || !strings.Contains(err.Error(), "no root entity") {
		t.Fatalf("err = %v, want missing-root diagnostic", err)
	}
}

func TestParseDocument_StrippedEntryStaysAddressable(t *testing.T) {
	src := "--- !u!1 &100\nGameObject:\n  m_Name: Hub\n--- !u!4 &401 stripped\n"
	doc, err := ParseDocument("Hub.prefab", []byte(src))
	require.NoError(t, err)

	e, ok := doc.Pool.Peek(401)
	require.True(t, ok, "stripped entry should still be in the pool")
	require.Equal(t, 4, e.ClassID)
}

func TestExtractEmbeddedDeclaration(t *testing.T) {
	src := `--- !u!114 &1
MonoBehaviour:
  m_Script: {fileID: 11500000, guid: ` + blueprintAssetGUID + `, type: 3}
  _content: '{"Id": "Sawmill", "ScienceCost": 10}'
`
	raw, err := ExtractEmbeddedDeclaration("Building.Sawmill.blueprint.asset", []byte(src))
	require.NoError(t, err)

	v, err := document.FromJSON(raw)
	require.NoError(t, err)
	cost, _ := v.Field("ScienceCost")
	require.Equal(t, int64(10), cost.AsInt())
}

func TestExtractEmbeddedDeclaration_WrongScriptIsFatal(t *testing.T) {
	src := "--- !u!114 &1\nMonoBehaviour:\n  m_Script: {fileID: 11500000, guid: ffffffffffffffffffffffffffffffff, type: 3}\n  _content: '{}'\n"
	_, err := ExtractEmbeddedDeclaration("weird.asset", []byte(src))
	require.Error(t, err)
}
