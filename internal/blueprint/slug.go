// Package blueprint implements the declaration side of the resolved model:
// canonical identifiers, the overlay merge engine that folds every raw
// declaration for one identifier into a single Definition, and the alias
// table that adds backward-compatible lookup keys.
package blueprint

import "strings"

// Slug canonicalizes a free-form identifier into the case-insensitive key
// space used by every lookup table in the tool. Declarations match a
// Definition by the slug derived from their filename, never by an Id field
// read out of the payload.
func Slug(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
