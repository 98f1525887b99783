package pipeline

import (
	"context"
	"fmt"
	"path"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
	"timbertrees/internal/model"
	"timbertrees/internal/prefab"
	"timbertrees/internal/source"
)

// build loads every declaration kind in parallel, then folds each kind
// sequentially into the snapshot.
func (p *Pipeline) build(ctx context.Context, layout *source.Layout) (*model.Snapshot, error) {
	scanner := source.NewScanner(p.log)
	merger := blueprint.NewMerger(p.log)

	kinds := []string{"Faction", "Good", "NeedGroup", "Need", "Recipe", "BlockObjectToolGroup", "TemplateCollection", "Tool"}
	loaded := make([][]blueprint.RawDeclaration, len(kinds))
	var meta *prefab.MetaTable

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			decls, err := scanner.LoadKind(gctx, layout.Sources, kind)
			if err != nil {
				return fmt.Errorf("loading %s declarations: %w", kind, err)
			}
			loaded[i] = decls
			return nil
		})
	}
	g.Go(func() error {
		var err error
		meta, err = scanner.BuildMetaTable(gctx, layout.Sources)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	raw := make(map[string][]blueprint.RawDeclaration, len(kinds))
	for i, kind := range kinds {
		raw[kind] = loaded[i]
	}

	snap := &model.Snapshot{Versions: layout.Versions}
	var err error
	if snap.Factions, err = merger.MergeKind(raw["Faction"]); err != nil {
		return nil, err
	}
	if snap.Goods, err = merger.MergeKind(raw["Good"]); err != nil {
		return nil, err
	}
	if snap.NeedGroups, err = merger.MergeKind(raw["NeedGroup"]); err != nil {
		return nil, err
	}
	if snap.Needs, err = merger.MergeKind(raw["Need"]); err != nil {
		return nil, err
	}
	if snap.Recipes, err = merger.MergeKind(raw["Recipe"]); err != nil {
		return nil, err
	}
	toolGroupDecls := append(builtinToolGroups(), raw["BlockObjectToolGroup"]...)
	if snap.ToolGroups, err = merger.MergeKind(toolGroupDecls); err != nil {
		return nil, err
	}
	collections, err := merger.MergeKind(raw["TemplateCollection"])
	if err != nil {
		return nil, err
	}

	snap.Goods = blueprint.ExpandAliases(p.log, snap.Goods)
	snap.Needs = blueprint.ExpandAliases(p.log, snap.Needs)
	snap.Recipes = blueprint.ExpandAliases(p.log, snap.Recipes)

	if err := p.buildCollections(ctx, layout, scanner, merger, meta, collections, raw["Tool"], snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// buildCollections loads the template collections (common plus one per
// faction) and derives each collection's tool table: synthesized tools from
// the templates fold first, then the declared tool files on top.
func (p *Pipeline) buildCollections(ctx context.Context, layout *source.Layout, scanner *source.Scanner, merger *blueprint.Merger, meta *prefab.MetaTable, collections blueprint.Table, toolDecls []blueprint.RawDeclaration, snap *model.Snapshot) error {
	snap.Tools = make(map[string]blueprint.Table)
	snap.Templates = make(map[string]blueprint.Table)

	build := func(key string, collectionIDs []string) error {
		templates, err := p.loadTemplates(ctx, layout, scanner, merger, meta, collections, collectionIDs)
		if err != nil {
			return err
		}
		tools, err := merger.MergeKind(append(toolsFromTemplates(templates), toolDecls...))
		if err != nil {
			return err
		}
		snap.Templates[key] = templates
		snap.Tools[key] = tools
		return nil
	}

	if err := build(model.CommonCollection, []string{model.CommonCollection}); err != nil {
		return err
	}
	for slug, faction := range snap.Factions {
		ids, _ := fieldOf(faction, "FactionSpec", "TemplateCollectionIds")
		var collectionIDs []string
		for _, id := range ids.AsList() {
			cid := blueprint.Slug(id.AsString())
			if cid != model.CommonCollection {
				collectionIDs = append(collectionIDs, cid)
			}
		}
		if err := build(slug, collectionIDs); err != nil {
			return fmt.Errorf("faction %s: %w", slug, err)
		}
	}
	return nil
}

// loadTemplates resolves every template path the named collections list. A
// template ships either as a declaration file (merged across sources) or as
// a serialized scene-graph document (resolved through the object-graph
// resolver); declarations win when both exist.
func (p *Pipeline) loadTemplates(ctx context.Context, layout *source.Layout, scanner *source.Scanner, merger *blueprint.Merger, meta *prefab.MetaTable, collections blueprint.Table, collectionIDs []string) (blueprint.Table, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, cid := range collectionIDs {
		collection, ok := collections[cid]
		if !ok {
			p.log.Warn("unknown template collection", zap.String("id", cid))
			continue
		}
		list, _ := fieldOf(collection, "TemplateCollectionSpec", "Blueprints")
		for _, entry := range list.AsList() {
			rel := entry.AsString()
			if rel != "" && !seen[rel] {
				seen[rel] = true
				paths = append(paths, rel)
			}
		}
	}
	sort.Strings(paths)

	type loaded struct {
		slug string
		def  document.Value
		ok   bool
	}
	results := make([]loaded, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			def, ok, err := p.loadTemplate(scanner, merger, meta, layout.Sources, rel)
			if err != nil {
				return err
			}
			results[i] = loaded{slug: blueprint.Slug(path.Base(rel)), def: def, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	templates := make(blueprint.Table, len(results))
	for _, r := range results {
		if !r.ok {
			continue
		}
		if _, dup := templates[r.slug]; dup {
			return nil, fmt.Errorf("template %q appears twice in the collection set", r.slug)
		}
		templates[r.slug] = r.def
	}
	return templates, nil
}

func (p *Pipeline) loadTemplate(scanner *source.Scanner, merger *blueprint.Merger, meta *prefab.MetaTable, sources []source.Source, rel string) (document.Value, bool, error) {
	decls, err := scanner.LoadTemplate(sources, rel)
	if err != nil {
		return document.Value{}, false, err
	}
	if len(decls) > 0 {
		def, ok, err := merger.MergeSet(path.Base(rel), decls)
		if err != nil {
			return document.Value{}, false, err
		}
		return def, ok, nil
	}

	for _, suffix := range []string{".prefab", ".asset"} {
		data, from, found, err := scanner.ReadFirst(sources, rel+suffix)
		if err != nil {
			return document.Value{}, false, err
		}
		if !found {
			continue
		}
		doc, err := prefab.ParseDocument(from+":"+rel+suffix, data)
		if err != nil {
			return document.Value{}, false, err
		}
		def, err := prefab.NewResolver(meta, p.log).Resolve(doc)
		if err != nil {
			return document.Value{}, false, err
		}
		return def, true, nil
	}
	p.log.Warn("template not found in any source", zap.String("path", rel))
	return document.Value{}, false, nil
}

func fieldOf(def document.Value, parts ...string) (document.Value, bool) {
	cur := def
	for _, part := range parts {
		next, ok := cur.Field(part)
		if !ok {
			return document.Value{}, false
		}
		cur = next
	}
	return cur, true
}

func fieldIntOf(def document.Value, parts ...string) int64 {
	v, ok := fieldOf(def, parts...)
	if !ok {
		return 0
	}
	switch v.Kind() {
	case document.KindInt:
		return v.AsInt()
	case document.KindFloat:
		return int64(v.AsFloat())
	}
	return 0
}

func fieldStringOf(def document.Value, parts ...string) string {
	v, ok := fieldOf(def, parts...)
	if !ok || v.Kind() != document.KindString {
		return ""
	}
	return v.AsString()
}
