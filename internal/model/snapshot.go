package model

import (
	"sort"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
)

// Snapshot is the fully resolved data model for one run. It is built once by
// the pipeline (parallel load, then strictly sequential merge) and read-only
// afterwards: renderers and the cache consume it, nothing mutates it.
type Snapshot struct {
	// Versions maps a lower-cased package id to its version manifest; the
	// base install registers under "timberborn".
	Versions map[string]document.Value `json:"versions"`

	Factions   blueprint.Table `json:"factions"`
	Goods      blueprint.Table `json:"goods"`
	NeedGroups blueprint.Table `json:"needgroups"`
	Needs      blueprint.Table `json:"needs"`
	Recipes    blueprint.Table `json:"recipes"`
	ToolGroups blueprint.Table `json:"toolgroups"`

	// Tools and Templates are keyed by faction slug, plus "common" for the
	// collection shared by every faction. Templates hold the Prefab records
	// resolved from scene-graph documents; they share the Definition
	// identifier space, so a building can have both a BuildingSpec
	// Definition and a Prefab of physical components under one slug.
	Tools     map[string]blueprint.Table `json:"tools"`
	Templates map[string]blueprint.Table `json:"templates"`
}

// CommonCollection is the Tools/Templates key for faction-independent content.
const CommonCollection = "common"

// FactionSlugs returns the faction keys in declared order (FactionSpec.Order
// ascending, slug as tiebreak).
func (s *Snapshot) FactionSlugs() []string {
	slugs := make([]string, 0, len(s.Factions))
	for slug := range s.Factions {
		slugs = append(slugs, slug)
	}
	sort.Slice(slugs, func(i, j int) bool {
		oi, oj := factionOrder(s.Factions[slugs[i]]), factionOrder(s.Factions[slugs[j]])
		if oi != oj {
			return oi < oj
		}
		return slugs[i] < slugs[j]
	})
	return slugs
}

func factionOrder(def document.Value) int64 {
	spec, ok := def.Field("FactionSpec")
	if !ok {
		return 0
	}
	order, ok := spec.Field("Order")
	if !ok {
		return 0
	}
	return int64(order.AsFloat())
}

// FactionTools returns the common tools overlaid with the faction's own,
// faction entries winning on slug collisions.
func (s *Snapshot) FactionTools(faction string) blueprint.Table {
	return overlayTables(s.Tools[CommonCollection], s.Tools[faction])
}

// FactionTemplates returns the common templates overlaid with the faction's
// own, faction entries winning on slug collisions.
func (s *Snapshot) FactionTemplates(faction string) blueprint.Table {
	return overlayTables(s.Templates[CommonCollection], s.Templates[faction])
}

func overlayTables(base, overlay blueprint.Table) blueprint.Table {
	out := make(blueprint.Table, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
