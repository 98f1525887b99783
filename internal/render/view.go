// Package render turns a resolved snapshot into the generated outputs: an
// HTML page, a plain-text page, and a production graph per faction and
// language, plus the index that links them all. Renderers read the snapshot
// and never mutate it; every ordering decision comes from the derived
// composite keys so output is stable across runs.
package render

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/catalog"
	"timbertrees/internal/document"
	"timbertrees/internal/model"
)

// plantingGroupType marks the synthetic planting tool groups, which render
// with the natural resources rather than the building tree.
const plantingGroupType = "PlantingModeToolGroup"

// View is the per-faction read model the generators share: the faction's
// overlaid tool and template tables plus the grouping indexes and orderings
// the traversal needs.
type View struct {
	log *zap.Logger
	cat *catalog.Catalog

	Snapshot  *model.Snapshot
	Faction   document.Value
	FactionID string

	Tools     blueprint.Table
	Templates blueprint.Table

	groupKeys      map[string]model.CompositeKey
	groupsByParent map[string][]document.Value
	toolsByGroup   map[string][]document.Value

	// NaturalResources holds every plantable/growable template, crops first,
	// then by declared order.
	NaturalResources []document.Value
}

func NewView(log *zap.Logger, cat *catalog.Catalog, snap *model.Snapshot, factionSlug string) (*View, error) {
	faction, ok := snap.Factions[factionSlug]
	if !ok {
		return nil, fmt.Errorf("unknown faction %q", factionSlug)
	}
	keys, err := model.DeriveOrderKeys(snap.ToolGroups, model.ToolGroupKeyFields)
	if err != nil {
		return nil, fmt.Errorf("ordering tool groups: %w", err)
	}

	v := &View{
		log:       log,
		cat:       cat,
		Snapshot:  snap,
		Faction:   faction,
		FactionID: fieldString(faction, "FactionSpec", "Id"),
		Tools:     snap.FactionTools(factionSlug),
		Templates: snap.FactionTemplates(factionSlug),
		groupKeys: keys,
	}

	groups := orderedBy(snap.ToolGroups, func(slug string) model.CompositeKey { return keys[slug] })
	v.groupsByParent = model.GroupBy(log, groups, "ParentToolGroupSpec.ParentIds")

	tools := orderedBy(v.Tools, func(slug string) model.CompositeKey {
		def := v.Tools[slug]
		key := keys[blueprint.Slug(fieldString(def, "ToolSpec", "GroupId"))]
		return append(append(model.CompositeKey{}, key...),
			model.KeyPart{Order: fieldInt(def, "ToolSpec", "Order")})
	})
	v.toolsByGroup = model.GroupBy(log, tools, "ToolSpec.GroupId")

	for _, def := range v.Templates {
		if _, ok := field(def, "NaturalResourceSpec"); ok {
			v.NaturalResources = append(v.NaturalResources, def)
		}
	}
	sort.SliceStable(v.NaturalResources, func(i, j int) bool {
		a, b := v.NaturalResources[i], v.NaturalResources[j]
		_, aCrop := field(a, "CropSpec")
		_, bCrop := field(b, "CropSpec")
		if aCrop != bCrop {
			return aCrop
		}
		if ao, bo := fieldInt(a, "NaturalResourceSpec", "Order"), fieldInt(b, "NaturalResourceSpec", "Order"); ao != bo {
			return ao < bo
		}
		return fieldString(a, "Id") < fieldString(b, "Id")
	})
	return v, nil
}

// Text resolves a localization key through the language catalog.
func (v *View) Text(key string) string { return v.cat.Get(key) }

// FactionName is the faction's localized display name.
func (v *View) FactionName() string {
	return v.Text(fieldString(v.Faction, "FactionSpec", "DisplayNameLocKey"))
}

// RootGroups returns the parentless tool groups in derived order. Planting
// groups are returned separately: they render with the natural resources.
func (v *View) RootGroups() (planting, building []document.Value) {
	for _, g := range v.groupsByParent[model.Ungrouped] {
		if fieldString(g, "BlockObjectToolGroupSpec", "Type") == plantingGroupType {
			planting = append(planting, g)
		} else {
			building = append(building, g)
		}
	}
	return planting, building
}

// GroupItem is one entry of a tool group's ordered contents: either a child
// group or a tool.
type GroupItem struct {
	IsGroup bool
	Def     document.Value
	order   int64
}

// GroupItems interleaves a group's tools and child groups by their local
// order, tools before groups on ties.
func (v *View) GroupItems(group document.Value) []GroupItem {
	id := blueprint.Slug(fieldString(group, "BlockObjectToolGroupSpec", "Id"))
	var items []GroupItem
	for _, tool := range v.toolsByGroup[id] {
		items = append(items, GroupItem{Def: tool, order: fieldInt(tool, "ToolSpec", "Order")})
	}
	for _, child := range v.groupsByParent[id] {
		items = append(items, GroupItem{IsGroup: true, Def: child, order: fieldInt(child, "BlockObjectToolGroupSpec", "Order")})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].order != items[j].order {
			return items[i].order < items[j].order
		}
		return !items[i].IsGroup && items[j].IsGroup
	})
	return items
}

// ToolTemplate resolves the template behind a tool. Dev-mode tools and tools
// without a template are skipped with the reason logged.
func (v *View) ToolTemplate(tool document.Value) (document.Value, bool) {
	if dev, ok := field(tool, "ToolSpec", "DevMode"); ok && dev.Kind() == document.KindBool && dev.AsBool() {
		v.log.Debug("skipping dev-mode tool", zap.String("id", fieldString(tool, "ToolSpec", "Id")))
		return document.Value{}, false
	}
	slug := blueprint.Slug(fieldString(tool, "ToolSpec", "Id"))
	template, ok := v.Templates[slug]
	if !ok {
		v.log.Warn("tool has no template", zap.String("id", slug))
		return document.Value{}, false
	}
	return template, true
}

// BuildingRecipes resolves a building's production recipes. Missing recipe
// references are logged and skipped, never fatal.
func (v *View) BuildingRecipes(building document.Value) []document.Value {
	ids, ok := field(building, "ManufactorySpec", "ProductionRecipeIds")
	if !ok || ids.Kind() != document.KindList {
		return nil
	}
	var out []document.Value
	for _, id := range ids.AsList() {
		recipe, found := v.Snapshot.Recipes[blueprint.Slug(id.AsString())]
		if !found {
			v.log.Warn("skipping missing recipe", zap.String("id", id.AsString()))
			continue
		}
		out = append(out, recipe)
	}
	return out
}

// Good resolves a good reference; missing goods are logged and skipped.
func (v *View) Good(id string) (document.Value, bool) {
	good, ok := v.Snapshot.Goods[blueprint.Slug(id)]
	if !ok {
		v.log.Warn("skipping missing good", zap.String("id", id))
	}
	return good, ok
}

// orderedBy returns a table's definitions sorted by a per-slug composite key,
// slug as tiebreak.
func orderedBy(table blueprint.Table, key func(slug string) model.CompositeKey) []document.Value {
	slugs := make([]string, 0, len(table))
	for slug := range table {
		slugs = append(slugs, slug)
	}
	sort.Slice(slugs, func(i, j int) bool {
		if c := key(slugs[i]).Compare(key(slugs[j])); c != 0 {
			return c < 0
		}
		return slugs[i] < slugs[j]
	})
	out := make([]document.Value, 0, len(slugs))
	for _, slug := range slugs {
		out = append(out, table[slug])
	}
	return out
}

func field(def document.Value, path ...string) (document.Value, bool) {
	cur := def
	for _, p := range path {
		next, ok := cur.Field(p)
		if !ok {
			return document.Value{}, false
		}
		cur = next
	}
	return cur, true
}

func fieldString(def document.Value, path ...string) string {
	v, ok := field(def, path...)
	if !ok || v.Kind() != document.KindString {
		return ""
	}
	return v.AsString()
}

func fieldInt(def document.Value, path ...string) int64 {
	v, ok := field(def, path...)
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

func fieldFloat(def document.Value, path ...string) float64 {
	v, ok := field(def, path...)
	if !ok {
		return 0
	}
	switch v.Kind() {
	case document.KindInt, document.KindFloat:
		return v.AsFloat()
	}
	return 0
}
