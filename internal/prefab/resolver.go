package prefab

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"timbertrees/internal/document"
)

// enginePrefix marks serializer bookkeeping fields that never belong in a
// resolved record.
const enginePrefix = "m_"

// maxResolveDepth bounds reference chasing. Pool consumption already rules
// out anchor cycles, so this only trips on degenerate nesting.
const maxResolveDepth = 64

// Resolver flattens parsed scene-graph documents into Prefab records using a
// GUID directory to name components and external assets.
type Resolver struct {
	meta *MetaTable
	log  *zap.Logger
}

func NewResolver(meta *MetaTable, log *zap.Logger) *Resolver {
	return &Resolver{meta: meta, log: log}
}

// Resolve turns one document into a single record: the root entity's name as
// Id, plus one entry per behavior component keyed by its script type name.
// Components whose script GUID is unknown are dropped; the rest have their
// bodies walked with every embedded reference rewritten in place.
func (r *Resolver) Resolve(doc *Document) (document.Value, error) {
	body := doc.Root.Body()
	name, ok := body.Field("m_Name")
	if !ok || name.Kind() != document.KindString {
		return document.Value{}, fmt.Errorf("%s: root entity has no name", doc.Path)
	}
	out := map[string]document.Value{"Id": name.Clone()}

	components, _ := body.Field("m_Component")
	for _, slot := range components.AsList() {
		slotRef, _ := slot.Field("component")
		anchor, ok := refAnchor(slotRef)
		if !ok {
			continue
		}
		entry, ok := doc.Pool.Take(anchor)
		if !ok {
			r.log.Debug("component anchor missing or already consumed",
				zap.String("path", doc.Path), zap.Int64("anchor", anchor))
			continue
		}
		if entry.ClassID != classMonoBehaviour {
			continue
		}
		script, _ := entry.Body().Field("m_Script")
		guid, _ := script.Field("guid")
		if guid.Kind() != document.KindString {
			continue
		}
		meta, known := r.meta.Lookup(guid.AsString())
		if !known || meta.TypeName == "" {
			r.log.Debug("skipping component with unknown script",
				zap.String("path", doc.Path), zap.String("guid", guid.AsString()))
			continue
		}
		resolved, err := r.resolveMap(doc, entry.Body(), 0)
		if err != nil {
			return document.Value{}, fmt.Errorf("%s: component %s: %w", doc.Path, meta.TypeName, err)
		}
		if _, dup := out[meta.TypeName]; dup {
			r.log.Warn("duplicate component type on entity, keeping first",
				zap.String("path", doc.Path), zap.String("component", meta.TypeName))
			continue
		}
		out[meta.TypeName] = resolved
	}
	return document.Map(out), nil
}

func (r *Resolver) resolveValue(doc *Document, v document.Value, depth int) (document.Value, error) {
	if depth > maxResolveDepth {
		return document.Value{}, fmt.Errorf("reference resolution exceeded depth %d", maxResolveDepth)
	}
	switch v.Kind() {
	case document.KindMap:
		if isReference(v) {
			return r.resolveReference(doc, v, depth)
		}
		return r.resolveMap(doc, v, depth)
	case document.KindList:
		items := v.AsList()
		out := make([]document.Value, 0, len(items))
		for _, item := range items {
			rv, err := r.resolveValue(doc, item, depth+1)
			if err != nil {
				return document.Value{}, err
			}
			out = append(out, rv)
		}
		return document.List(out...), nil
	default:
		return v.Clone(), nil
	}
}

func (r *Resolver) resolveMap(doc *Document, m document.Value, depth int) (document.Value, error) {
	out := make(map[string]document.Value)
	for k, v := range m.AsMap() {
		key, keep := exportKey(k)
		if !keep {
			continue
		}
		rv, err := r.resolveValue(doc, v, depth+1)
		if err != nil {
			return document.Value{}, fmt.Errorf("%s: %w", k, err)
		}
		out[key] = rv
	}
	return document.Map(out), nil
}

// resolveReference rewrites a {fileID, guid?, type?} map. GUID references
// point outside the document and become the target asset's name; plain
// anchor references are dereferenced into the pool, consuming the target.
// Unresolvable references stay as written.
func (r *Resolver) resolveReference(doc *Document, v document.Value, depth int) (document.Value, error) {
	if guid, ok := v.Field("guid"); ok && guid.Kind() == document.KindString {
		if meta, known := r.meta.Lookup(guid.AsString()); known {
			return document.String(meta.Stem()), nil
		}
		r.log.Debug("unresolved external reference",
			zap.String("path", doc.Path), zap.String("guid", guid.AsString()))
		return v.Clone(), nil
	}
	id, _ := v.Field("fileID")
	if id.Kind() != document.KindInt {
		return v.Clone(), nil
	}
	anchor := id.AsInt()
	if anchor == 0 || anchor == doc.Root.Anchor {
		// Null reference, or a back-reference to the owning entity.
		return document.Null(), nil
	}
	entry, ok := doc.Pool.Take(anchor)
	if !ok {
		r.log.Debug("dangling anchor reference",
			zap.String("path", doc.Path), zap.Int64("anchor", anchor))
		return v.Clone(), nil
	}
	return r.resolveMap(doc, entry.Body(), depth+1)
}

// exportKey maps a serialized field name to its record key: engine
// bookkeeping fields are dropped, private serialized fields ("_name")
// surface under their public capitalized name, everything else passes
// through unchanged.
func exportKey(k string) (string, bool) {
	if strings.HasPrefix(k, enginePrefix) {
		return "", false
	}
	if strings.HasPrefix(k, "_") && len(k) > 1 {
		return strings.ToUpper(k[1:2]) + k[2:], true
	}
	return k, true
}

func refAnchor(v document.Value) (int64, bool) {
	id, ok := v.Field("fileID")
	if !ok || id.Kind() != document.KindInt {
		return 0, false
	}
	return id.AsInt(), true
}

// isReference reports whether a map is a serialized reference: a fileID key,
// optionally accompanied by guid and type, and nothing else.
func isReference(v document.Value) bool {
	m := v.AsMap()
	if _, ok := m["fileID"]; !ok {
		return false
	}
	for k := range m {
		switch k {
		case "fileID", "guid", "type":
		default:
			return false
		}
	}
	return true
}
