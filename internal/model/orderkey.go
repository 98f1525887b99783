package model

import (
	"fmt"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
)

// maxParentDepth bounds the ancestor walk. A chain this deep is either a
// cyclic parent reference or a configuration no renderer could present; both
// are fatal.
const maxParentDepth = 64

// KeyPart is one (bucket, order) step of a CompositeKey.
type KeyPart struct {
	Bucket string
	Order  int64
}

// CompositeKey totally orders entities arranged in a tree. A node's key is
// its parent's key with the node's own (bucket, local order) pair appended,
// so lexicographic comparison yields a pre-order traversal.
type CompositeKey []KeyPart

// Compare returns -1, 0 or 1 ordering k against o lexicographically: bucket
// first, then local order, with a shorter key sorting before its extensions.
func (k CompositeKey) Compare(o CompositeKey) int {
	for i := 0; i < len(k) && i < len(o); i++ {
		if k[i].Bucket != o[i].Bucket {
			if k[i].Bucket < o[i].Bucket {
				return -1
			}
			return 1
		}
		if k[i].Order != o[i].Order {
			if k[i].Order < o[i].Order {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(k) < len(o):
		return -1
	case len(k) > len(o):
		return 1
	default:
		return 0
	}
}

// Less reports whether k sorts before o.
func (k CompositeKey) Less(o CompositeKey) bool { return k.Compare(o) < 0 }

// KeyFields names where a grouping tree keeps its ordering and parentage
// fields inside each Definition.
type KeyFields struct {
	// SpecField is the sub-document carrying the ordering fields, e.g.
	// "BlockObjectToolGroupSpec".
	SpecField string
	// BucketField orders siblings into layout buckets before local order;
	// BucketDefault applies when the field is absent.
	BucketField   string
	BucketDefault string
	// OrderField is the node's local order within its bucket.
	OrderField string
	// ParentSpecField/ParentIDsField locate the optional single-parent
	// reference, e.g. "ParentToolGroupSpec"."ParentIds".
	ParentSpecField string
	ParentIDsField  string
}

// ToolGroupKeyFields matches the tool-group declaration layout.
var ToolGroupKeyFields = KeyFields{
	SpecField:       "BlockObjectToolGroupSpec",
	BucketField:     "Layout",
	BucketDefault:   "Default",
	OrderField:      "Order",
	ParentSpecField: "ParentToolGroupSpec",
	ParentIDsField:  "ParentIds",
}

// DeriveOrderKeys computes one CompositeKey per entry of table. A parent
// reference that names no entry in the same table is a fatal configuration
// error: sorting with it would be silently wrong. A parent chain deeper than
// maxParentDepth (necessarily a cycle in any sane configuration) is fatal for
// the same reason.
func DeriveOrderKeys(table blueprint.Table, fields KeyFields) (map[string]CompositeKey, error) {
	keys := make(map[string]CompositeKey, len(table))
	for slug := range table {
		key, err := deriveKey(table, fields, slug, 0)
		if err != nil {
			return nil, err
		}
		keys[slug] = key
	}
	return keys, nil
}

// OrderKeyFor computes the CompositeKey of a single identifier against the
// given table, for callers ordering members by their owning group.
func OrderKeyFor(table blueprint.Table, fields KeyFields, slug string) (CompositeKey, error) {
	return deriveKey(table, fields, blueprint.Slug(slug), 0)
}

func deriveKey(table blueprint.Table, fields KeyFields, slug string, depth int) (CompositeKey, error) {
	if depth > maxParentDepth {
		return nil, fmt.Errorf("group %q: parent chain exceeds depth %d (cyclic parent reference?)", slug, maxParentDepth)
	}
	def, ok := table[slug]
	if !ok {
		return nil, fmt.Errorf("group %q: no such group", slug)
	}

	spec, ok := def.Field(fields.SpecField)
	if !ok || spec.Kind() != document.KindMap {
		return nil, fmt.Errorf("group %q: missing %s", slug, fields.SpecField)
	}
	order, ok := spec.Field(fields.OrderField)
	if !ok || (order.Kind() != document.KindInt && order.Kind() != document.KindFloat) {
		return nil, fmt.Errorf("group %q: missing numeric %s.%s", slug, fields.SpecField, fields.OrderField)
	}
	bucket := fields.BucketDefault
	if b, ok := spec.Field(fields.BucketField); ok && b.Kind() == document.KindString {
		bucket = b.AsString()
	}
	local := KeyPart{Bucket: bucket, Order: int64(order.AsFloat())}

	parent, ok, err := parentID(def, fields)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", slug, err)
	}
	if !ok {
		return CompositeKey{local}, nil
	}
	parentSlug := blueprint.Slug(parent)
	parentKey, err := deriveKey(table, fields, parentSlug, depth+1)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", slug, err)
	}
	return append(parentKey, local), nil
}

func parentID(def document.Value, fields KeyFields) (string, bool, error) {
	spec, ok := def.Field(fields.ParentSpecField)
	if !ok {
		return "", false, nil
	}
	ids, ok := spec.Field(fields.ParentIDsField)
	if !ok || ids.Kind() != document.KindList || ids.Len() == 0 {
		return "", false, nil
	}
	// A node has at most one parent; more would make the tree a DAG, which
	// the ordering model cannot linearize.
	if ids.Len() > 1 {
		return "", false, fmt.Errorf("%s.%s declares %d parents, want at most 1",
			fields.ParentSpecField, fields.ParentIDsField, ids.Len())
	}
	first := ids.AsList()[0]
	if first.Kind() != document.KindString {
		return "", false, fmt.Errorf("%s.%s: parent id is %s, want string",
			fields.ParentSpecField, fields.ParentIDsField, first.Kind())
	}
	return first.AsString(), true, nil
}
