package models

import "strings"

// NormalizeEntityName canonicalizes an entity name for identity matching:
// lowercased, trimmed, inner whitespace collapsed to single spaces.
func NormalizeEntityName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// EntityRefs builds refs of one kind from raw names, dropping empties and
// duplicates (by normalized name, first occurrence wins).
func EntityRefs(kind string, names []string) []EntityRef {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	refs := make([]EntityRef, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := NormalizeEntityName(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, EntityRef{Name: n, Kind: kind})
	}
	return refs
}
