package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
	"timbertrees/internal/source"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func writeZip(t *testing.T, root, rel string, files map[string]string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	f, err := os.Create(full)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range files {
		zf, err := w.Create(name)
		require.NoError(t, err)
		_, err = zf.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

// fakeInstall lays out a minimal but complete base install: one faction, one
// tool group, one manufactory building with a recipe, one good, plus the
// version manifest and an English string table.
func fakeInstall(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	write(t, base, "StreamingAssets/VersionNumbers.json", `{"CurrentVersion": "7.0.0"}`)
	writeZip(t, base, "StreamingAssets/Modding/Localizations.zip", map[string]string{
		"enUS.csv": "ID,Text,Comment\nSettings.Language.Name,English,\nToolGroups.Wood,Wood,\n",
	})
	writeZip(t, base, "StreamingAssets/Modding/Blueprints.zip", map[string]string{
		"Faction.Folktails.blueprint.json": `{"FactionSpec": {
			"Id": "Folktails", "Order": 1,
			"DisplayNameLocKey": "Faction.Folktails.DisplayName",
			"NewGameFullAvatar": "folktails_full",
			"TemplateCollectionIds": ["Common", "Folktails"]}}`,
		"Good.Log.blueprint.json": `{"GoodSpec": {
			"Id": "Log",
			"DisplayNameLocKey": "Good.Log.DisplayName",
			"PluralDisplayNameLocKey": "Good.Log.PluralDisplayName"}}`,
		"Good.Plank.blueprint.json": `{"GoodSpec": {
			"Id": "Plank",
			"DisplayNameLocKey": "Good.Plank.DisplayName",
			"PluralDisplayNameLocKey": "Good.Plank.PluralDisplayName"},
			"BackwardCompatibleIds": ["Planks"]}`,
		"Recipe.Plank.blueprint.json": `{"RecipeSpec": {
			"Id": "Plank", "DisplayLocKey": "Recipe.Plank.DisplayName",
			"CycleDurationInHours": 1,
			"Ingredients": [{"Id": "Log", "Amount": 1}],
			"Products": [{"Id": "Plank", "Amount": 2}],
			"Fuel": "", "CyclesFuelLasts": 0, "ProducedSciencePoints": 0}}`,
		"BlockObjectToolGroup.Wood.blueprint.json": `{"BlockObjectToolGroupSpec": {
			"Id": "Wood", "Order": 10, "NameLocKey": "ToolGroups.Wood"}}`,
		"TemplateCollection.Common.blueprint.json": `{"TemplateCollectionSpec": {
			"CollectionId": "Common", "Blueprints": []}}`,
		"TemplateCollection.Folktails.blueprint.json": `{"TemplateCollectionSpec": {
			"CollectionId": "Folktails",
			"Blueprints": ["Buildings/Sawmill/Sawmill"]}}`,
		"Buildings/Sawmill/Sawmill.json": `{
			"TemplateSpec": {"TemplateName": "Sawmill"},
			"LabeledEntitySpec": {"DisplayNameLocKey": "Building.Sawmill.DisplayName"},
			"PlaceableBlockObjectSpec": {"ToolGroupId": "Wood", "ToolOrder": 1, "DevModeTool": 0},
			"BuildingSpec": {"ScienceCost": 100, "BuildingCost": [{"Id": "Log", "Amount": 12}]},
			"ManufactorySpec": {"ProductionRecipeIds": ["Plank"]}}`,
	})
	return base
}

func TestPipeline_EndToEnd(t *testing.T) {
	base := fakeInstall(t)
	out := t.TempDir()
	cacheDir := t.TempDir()

	p := New(zap.NewNop(), Options{
		DataDirs:               []string{base},
		Output:                 out,
		Languages:              []string{"enUS"},
		GraphGroupingThreshold: 5,
		CacheDir:               cacheDir,
	})
	require.NoError(t, p.Run(context.Background()))

	html, err := os.ReadFile(filepath.Join(out, "enUS_Folktails.html"))
	require.NoError(t, err)
	require.Contains(t, string(html), "Untranslated: Folktails")
	require.Contains(t, string(html), "Untranslated: Sawmill")
	require.Contains(t, string(html), "Wood", "localized tool group name from the zip table")

	text, err := os.ReadFile(filepath.Join(out, "enUS_Folktails.txt"))
	require.NoError(t, err)
	require.Contains(t, string(text), "12 Untranslated: Logs")

	dot, err := os.ReadFile(filepath.Join(out, "enUS_Folktails.gv"))
	require.NoError(t, err)
	require.Contains(t, string(dot), `"Log" -> "Sawmill.Plank"`)

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "enUS_Folktails.html")
	require.Contains(t, string(index), "<th>English</th>")
	require.Contains(t, string(index), "Timberborn 7.0.0")

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "one cache file written")

	// Second run hits the cache and regenerates identical output.
	require.NoError(t, p.Run(context.Background()))
	html2, err := os.ReadFile(filepath.Join(out, "enUS_Folktails.html"))
	require.NoError(t, err)
	require.Equal(t, string(html), string(html2))
}

func TestBuild_ParallelKindLoad(t *testing.T) {
	// The per-kind loaders run concurrently and each writes only its own
	// result slot; repeated builds must agree with each other.
	layout, err := source.Discover(zap.NewNop(), []string{fakeInstall(t)}, nil)
	require.NoError(t, err)

	p := New(zap.NewNop(), Options{})
	first, err := p.build(context.Background(), layout)
	require.NoError(t, err)
	require.Contains(t, first.Goods, "log")
	require.Contains(t, first.Recipes, "plank")

	for i := 0; i < 4; i++ {
		snap, err := p.build(context.Background(), layout)
		require.NoError(t, err)
		require.Equal(t, first.Goods, snap.Goods)
		require.Equal(t, first.ToolGroups, snap.ToolGroups)
	}
}

func TestPipeline_UnknownLanguage(t *testing.T) {
	p := New(zap.NewNop(), Options{
		DataDirs:  []string{fakeInstall(t)},
		Output:    t.TempDir(),
		Languages: []string{"xxXX"},
	})
	err := p.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown language")
}

func TestBuiltinToolGroups(t *testing.T) {
	groups := builtinToolGroups()
	require.Len(t, groups, 2)
	require.Equal(t, "Fields", groups[0].Slug)
	require.False(t, groups[0].Optional)
	order, _ := fieldOf(groups[0].Doc, "BlockObjectToolGroupSpec", "Order")
	require.Equal(t, int64(-80), order.AsInt())
}

func TestToolsFromTemplates(t *testing.T) {
	mustDoc := func(src string) document.Value {
		v, err := document.FromJSON([]byte(src))
		require.NoError(t, err)
		return v
	}
	templates := blueprint.Table{
		"sawmill": mustDoc(`{"Id": "Sawmill",
			"LabeledEntitySpec": {"DisplayNameLocKey": "Building.Sawmill.DisplayName"},
			"PlaceableBlockObjectSpec": {"ToolGroupId": "Wood", "ToolOrder": 3, "DevModeTool": 1}}`),
		"pine": mustDoc(`{"Id": "Pine",
			"LabeledEntitySpec": {"DisplayNameLocKey": "NaturalResource.Pine.DisplayName"},
			"NaturalResourceSpec": {"Order": 2},
			"PlantableSpec": {"ResourceGroup": "Trees"}}`),
		"carrot": mustDoc(`{"Id": "Carrot",
			"LabeledEntitySpec": {"DisplayNameLocKey": "NaturalResource.Carrot.DisplayName"},
			"NaturalResourceSpec": {"Order": 1},
			"PlantableSpec": {"ResourceGroup": "Crops"},
			"CropSpec": {}}`),
	}
	decls := toolsFromTemplates(templates)
	require.Len(t, decls, 3)

	bySlug := make(map[string]document.Value)
	for _, d := range decls {
		bySlug[blueprint.Slug(d.Slug)] = d.Doc
	}
	carrotGroup, _ := fieldOf(bySlug["carrot"], "ToolSpec", "GroupId")
	require.Equal(t, "Fields", carrotGroup.AsString())
	pineGroup, _ := fieldOf(bySlug["pine"], "ToolSpec", "GroupId")
	require.Equal(t, "Forestry", pineGroup.AsString())
	dev, ok := fieldOf(bySlug["sawmill"], "ToolSpec", "DevMode")
	require.True(t, ok)
	require.True(t, dev.AsBool())
}
