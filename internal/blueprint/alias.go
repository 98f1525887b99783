package blueprint

import (
	"sort"

	"go.uber.org/zap"

	"timbertrees/internal/document"
)

// aliasField is the declaration field naming legacy identifiers that should
// keep resolving to the same Definition.
const aliasField = "BackwardCompatibleIds"

// ExpandAliases returns a lookup table containing every canonical entry of
// defs plus one entry per declared backward-compatible identifier, each
// pointing at the same Definition. It runs once per declaration kind, after
// all merges for that kind are complete, and never alters Definition
// contents.
//
// An alias that would shadow an existing, distinct entry is skipped with a
// warning; the earlier registration always wins.
func ExpandAliases(log *zap.Logger, defs Table) Table {
	out := make(Table, len(defs))
	for slug, def := range defs {
		out[slug] = def
	}

	slugs := make([]string, 0, len(defs))
	for slug := range defs {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		def := defs[slug]
		for _, alias := range collectAliases(def) {
			key := Slug(alias)
			if existing, ok := out[key]; ok {
				if existing.Equal(def) {
					continue
				}
				log.Warn("skipping backward-compatible id, already taken",
					zap.String("alias", alias),
					zap.String("definition", slug))
				continue
			}
			log.Debug("registering backward-compatible id",
				zap.String("alias", alias),
				zap.String("definition", slug))
			out[key] = def
		}
	}
	return out
}

// collectAliases gathers alias lists declared at the Definition's top level
// or inside any of its component sub-documents.
func collectAliases(def document.Value) []string {
	var aliases []string
	appendFrom := func(v document.Value) {
		list, ok := v.Field(aliasField)
		if !ok || list.Kind() != document.KindList {
			return
		}
		for _, e := range list.AsList() {
			if e.Kind() == document.KindString {
				aliases = append(aliases, e.AsString())
			}
		}
	}

	appendFrom(def)
	keys := make([]string, 0, def.Len())
	for k := range def.AsMap() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		appendFrom(def.AsMap()[k])
	}
	return aliases
}
