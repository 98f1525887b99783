package blueprint

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"timbertrees/internal/document"
)

// VerbSeparator splits a declaration field key from its patch verb, as in
// "BuildingCost#append".
const VerbSeparator = "#"

// RawDeclaration is one parsed declaration document with its provenance.
// Priority is the source load index (base install 0, overlays in load order);
// higher priority folds later and therefore overrides.
type RawDeclaration struct {
	SourcePath string
	Priority   int
	Optional   bool
	Slug       string
	Doc        document.Value
}

// Table maps canonical slugs to merged Definitions.
type Table map[string]document.Value

// UnsupportedVerbError is fatal: a declaration used a patch verb the engine
// does not implement, and silently ignoring it would corrupt the merge.
type UnsupportedVerbError struct {
	FieldPath string
	Verb      string
}

func (e *UnsupportedVerbError) Error() string {
	return fmt.Sprintf("%s: unsupported patch verb %q", e.FieldPath, e.Verb)
}

// Merger folds raw declarations into Definitions. It is stateless apart from
// its logger; the fold itself is strictly sequential (merge order is
// load-bearing) and runs after the parallel load phase has completed.
type Merger struct {
	log *zap.Logger
}

// NewMerger returns a Merger that reports recoverable conditions on log.
func NewMerger(log *zap.Logger) *Merger {
	return &Merger{log: log}
}

// MergeKind folds every declaration of one kind into its Definition table.
// Declarations are grouped by slug; within a group non-optional declarations
// fold first in ascending priority order, then optional ones. An optional
// declaration for a slug with no non-optional base is skipped: optional
// overlays may refine entities but never originate them.
//
// Any fold failure aborts the whole kind. No partially merged Definition is
// ever returned.
func (m *Merger) MergeKind(decls []RawDeclaration) (Table, error) {
	groups := make(map[string][]RawDeclaration)
	var slugs []string
	for _, d := range decls {
		slug := Slug(d.Slug)
		if _, seen := groups[slug]; !seen {
			slugs = append(slugs, slug)
		}
		groups[slug] = append(groups[slug], d)
	}
	sort.Strings(slugs)

	merged := make(Table, len(groups))
	for _, slug := range slugs {
		def, ok, err := m.MergeSet(slug, groups[slug])
		if err != nil {
			return nil, err
		}
		if ok {
			merged[slug] = def
		}
	}
	return merged, nil
}

// MergeSet folds one slug's declarations into a single Definition seeded with
// the given identifier. The second result is false when the set held only
// optional declarations and therefore produced nothing.
func (m *Merger) MergeSet(id string, group []RawDeclaration) (document.Value, bool, error) {
	group = append([]RawDeclaration(nil), group...)
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].Optional != group[j].Optional {
			return !group[i].Optional
		}
		return group[i].Priority < group[j].Priority
	})

	var def map[string]document.Value
	for _, d := range group {
		if d.Optional && def == nil {
			m.log.Debug("skipping optional declaration without base",
				zap.String("slug", id),
				zap.String("source", d.SourcePath))
			continue
		}
		if d.Doc.Kind() != document.KindMap {
			return document.Value{}, false, fmt.Errorf("%s (from %s): declaration is %s, want map",
				id, d.SourcePath, d.Doc.Kind())
		}
		if def == nil {
			def = map[string]document.Value{"Id": document.String(id)}
		}
		if err := m.fold(id, def, d.Doc); err != nil {
			return document.Value{}, false, fmt.Errorf("%s (from %s): %w", id, d.SourcePath, err)
		}
	}
	if def == nil {
		return document.Value{}, false, nil
	}
	return document.Map(def), true, nil
}

// fold applies one declaration document's fields onto dst, recursing into
// nested maps so overlays merge field-by-field instead of replacing whole
// sub-documents.
func (m *Merger) fold(path string, dst map[string]document.Value, src document.Value) error {
	keys := make([]string, 0, src.Len())
	for k := range src.AsMap() {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		incoming := src.AsMap()[key]
		field, verb, _ := strings.Cut(key, VerbSeparator)
		fieldPath := document.Path(path, field)

		if verb != "" {
			if err := m.patch(fieldPath, dst, field, verb, incoming); err != nil {
				return err
			}
			continue
		}

		existing, has := dst[field]
		if !has || existing.IsNull() {
			dst[field] = incoming.Clone()
			continue
		}

		switch {
		case existing.Kind() == document.KindMap:
			if incoming.Kind() != document.KindMap {
				return &document.TypeMismatchError{FieldPath: fieldPath, Existing: existing.Kind(), Incoming: incoming.Kind()}
			}
			if err := m.fold(fieldPath, existing.AsMap(), incoming); err != nil {
				return err
			}
		case existing.Kind() == document.KindFloat && incoming.Kind() == document.KindInt:
			// An integer literal may refine a float-typed field; upcast and note it.
			m.log.Warn("integer literal refines float field",
				zap.String("field", fieldPath),
				zap.Int64("value", incoming.AsInt()))
			dst[field] = document.Float(incoming.AsFloat())
		case existing.Kind() == incoming.Kind():
			// Same-kind override, including wholesale list replacement when no
			// patch verb was given.
			dst[field] = incoming.Clone()
		default:
			return &document.TypeMismatchError{FieldPath: fieldPath, Existing: existing.Kind(), Incoming: incoming.Kind()}
		}
	}
	return nil
}

// patch applies a verb-suffixed field. Verbs operate on list fields; a verb
// on an absent field initializes it with the incoming list, which is how base
// declarations written against a future overlay read naturally.
func (m *Merger) patch(fieldPath string, dst map[string]document.Value, field, verb string, incoming document.Value) error {
	if verb != "append" && verb != "remove" {
		return &UnsupportedVerbError{FieldPath: fieldPath, Verb: verb}
	}
	if incoming.Kind() != document.KindList {
		return &document.TypeMismatchError{FieldPath: fieldPath, Existing: document.KindList, Incoming: incoming.Kind()}
	}

	existing, has := dst[field]
	if !has {
		// Verb against a field that was never initialized: the incoming list
		// becomes the field's initial value, replace-or-initialize style.
		dst[field] = incoming.Clone()
		return nil
	}
	if existing.Kind() != document.KindList {
		return &document.TypeMismatchError{FieldPath: fieldPath, Existing: existing.Kind(), Incoming: incoming.Kind()}
	}

	switch verb {
	case "append":
		joined := make([]document.Value, 0, existing.Len()+incoming.Len())
		joined = append(joined, existing.AsList()...)
		for _, e := range incoming.AsList() {
			joined = append(joined, e.Clone())
		}
		dst[field] = document.List(joined...)
	case "remove":
		dst[field] = m.removeElements(fieldPath, existing, incoming)
	}
	return nil
}

// removeElements drops each incoming element from the list by structural
// equality. Removing an element that is not present is a logged warning, not
// a failure: an optional overlay is allowed to retract items another overlay
// never added.
func (m *Merger) removeElements(fieldPath string, list, toRemove document.Value) document.Value {
	remaining := append([]document.Value(nil), list.AsList()...)
	for _, victim := range toRemove.AsList() {
		found := -1
		for i, e := range remaining {
			if e.Equal(victim) {
				found = i
				break
			}
		}
		if found < 0 {
			m.log.Warn("no such element to remove",
				zap.String("field", fieldPath),
				zap.String("element", victim.String()))
			continue
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
	}
	return document.List(remaining...)
}
