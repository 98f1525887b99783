package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"timbertrees/internal/document"
)

func TestTextRenderer(t *testing.T) {
	var out strings.Builder
	require.NoError(t, NewTextRenderer(fixtureView(t)).Render(&out))
	text := out.String()

	require.Contains(t, text, "Untranslated: Folktails")
	require.Contains(t, text, "[Untranslated: ToolGroups.Wood]")
	require.Contains(t, text, "[Untranslated: ToolGroups.Woodwork]")
	require.Contains(t, text, "Untranslated: Sawmill")
	require.Contains(t, text, "<- 1 Untranslated: Log")
	require.Contains(t, text, "-> 2 Untranslated: Planks")
	require.NotContains(t, text, "DebugTool", "dev-mode tools must not render")

	wood := strings.Index(text, "ToolGroups.Wood]")
	woodwork := strings.Index(text, "ToolGroups.Woodwork]")
	require.Less(t, wood, woodwork, "parent group renders before its child")
}

func TestGraphRenderer(t *testing.T) {
	var out strings.Builder
	require.NoError(t, NewGraphRenderer(fixtureView(t), 5).Render(&out))
	dot := out.String()

	require.True(t, strings.HasPrefix(dot, `digraph "Folktails"`))
	require.Contains(t, dot, `"Log" -> "Sawmill.Plank"`)
	require.Contains(t, dot, `"Sawmill.Plank" -> "Plank"`)
	require.Contains(t, dot, "SciencePoints")
	require.Contains(t, dot, `subgraph "cluster_Sawmill"`)
	// Logs are part of the building cost, so the ingredient edge is dashed.
	require.Contains(t, dot, "style=dashed")
}

func TestGraphRenderer_SplitsBusyBuildings(t *testing.T) {
	view := fixtureView(t)
	var out strings.Builder
	require.NoError(t, NewGraphRenderer(view, 0).Render(&out))
	require.Contains(t, out.String(), `subgraph "cluster_Sawmill.Plank"`,
		"above the grouping threshold each recipe gets its own cluster")
}

func TestHTMLRenderer(t *testing.T) {
	var out strings.Builder
	require.NoError(t, NewHTMLRenderer(fixtureView(t), false).Render(&out))
	html := out.String()

	require.Contains(t, html, "<!DOCTYPE html>")
	require.Contains(t, html, "<h1>Untranslated: Folktails</h1>")
	require.Contains(t, html, "Untranslated: ToolGroups.Woodwork")
	require.Contains(t, html, "<style>")
	require.NotContains(t, html, "../style.css")

	out.Reset()
	require.NoError(t, NewHTMLRenderer(fixtureView(t), true).Render(&out))
	require.Contains(t, out.String(), `<link href="../style.css" rel="stylesheet">`)
}

func TestIndex(t *testing.T) {
	idx := NewIndex()
	idx.Add("English", "Folktails", "Folktails", "[html]", "enUS_Folktails.html")
	idx.Add("English", "Folktails", "Folktails", "[txt]", "enUS_Folktails.txt")
	idx.Add("Deutsch", "Folktails", "Biberclan", "[html]", "deDE_Folktails.html")

	versions := []document.Value{
		doc(t, `{"CurrentVersion": "7.1.2"}`),
		doc(t, `{"Id": "SomeMod", "Name": "Some Mod", "Version": "1.2"}`),
	}
	var out strings.Builder
	require.NoError(t, idx.Render(&out, versions))
	html := out.String()

	require.Contains(t, html, `<a href="enUS_Folktails.html">[html]</a>`)
	require.Contains(t, html, `<a href="enUS_Folktails.txt">[txt]</a>`)
	require.Contains(t, html, "<th>English</th>")
	require.Contains(t, html, "<th>Deutsch</th>")
	require.Contains(t, html, "Timberborn 7.1.2")
	require.Contains(t, html, "Some Mod 1.2")

	english := strings.Index(html, "<th>English</th>")
	deutsch := strings.Index(html, "<th>Deutsch</th>")
	require.Less(t, english, deutsch, "rows keep insertion order")
}
