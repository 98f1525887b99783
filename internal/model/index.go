// Package model holds the resolved-model snapshot and the derived views the
// renderers read: one-to-many grouping indexes and the composite order keys
// that linearize tree-structured tool groups.
package model

import (
	"strings"

	"go.uber.org/zap"

	"timbertrees/internal/document"
)

// Ungrouped is the bucket for records that lack the grouping field entirely.
// Callers rely on it to find top-level members (a tool group with no parent
// lands here).
const Ungrouped = ""

// GroupBy builds a one-to-many index over records keyed by the value at a
// dotted field path. Records whose path is absent land in the Ungrouped
// bucket. A terminal list fans the record out into one bucket per element; a
// terminal scalar names a single bucket. Keys are lower-cased. A segment that
// resolves to an explicit null makes the record unplaceable; it is skipped
// with a warning rather than dropped silently or raised.
//
// Bucket contents preserve input iteration order. No sorting happens here;
// ordering is an order-key concern.
func GroupBy(log *zap.Logger, records []document.Value, path string) map[string][]document.Value {
	segments := strings.Split(path, ".")
	groups := make(map[string][]document.Value)

	for _, record := range records {
		keys, ok := resolveGroupKeys(log, record, segments, path)
		if !ok {
			continue
		}
		for _, key := range keys {
			groups[key] = append(groups[key], record)
		}
	}
	return groups
}

// resolveGroupKeys walks the dotted path on one record and returns the bucket
// keys it belongs to. The second result is false when the record cannot be
// placed in any bucket.
func resolveGroupKeys(log *zap.Logger, record document.Value, segments []string, path string) ([]string, bool) {
	cur := record
	for _, seg := range segments {
		if cur.IsNull() {
			log.Warn("cannot group record through null field", zap.String("path", path))
			return nil, false
		}
		next, ok := cur.Field(seg)
		if !ok {
			return []string{Ungrouped}, true
		}
		cur = next
	}
	if cur.IsNull() {
		log.Warn("cannot group record on null terminal value", zap.String("path", path))
		return nil, false
	}
	if cur.Kind() == document.KindList {
		keys := make([]string, 0, cur.Len())
		for _, e := range cur.AsList() {
			keys = append(keys, groupKey(e))
		}
		return keys, true
	}
	return []string{groupKey(cur)}, true
}

func groupKey(v document.Value) string {
	if v.Kind() == document.KindString {
		return strings.ToLower(v.AsString())
	}
	return strings.ToLower(v.String())
}
