package normalize

import "github.com/chirino/console-migrate/internal/model"

// Dedupe returns the field's ids with duplicates removed, keeping the first
// occurrence of each. changed is false when the field already holds unique
// ids, in which case the document must not be written.
func Dedupe(doc model.Document, field string) (deduped []string, changed bool) {
	refs := doc.Refs(field)
	if len(refs) < 2 {
		return refs, false
	}
	seen := make(map[string]struct{}, len(refs))
	deduped = make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		deduped = append(deduped, ref)
	}
	return deduped, len(deduped) != len(refs)
}
