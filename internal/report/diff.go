package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/pmezard/go-difflib/difflib"
)

// Snapshot is every document of every collection.
type Snapshot map[model.Collection][]model.Document

// Diff returns a unified diff of every document that changed or appeared
// between before and after. Documents are never deleted by the engine, so
// removals are not reported.
func Diff(before, after Snapshot) (string, error) {
	var out strings.Builder
	for _, coll := range model.Collections {
		old := index(before[coll])
		docs := after[coll]
		ids := make([]string, 0, len(docs))
		current := index(docs)
		for id := range current {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			newText, err := pretty(current[id])
			if err != nil {
				return "", err
			}
			oldText := ""
			fromFile := "/dev/null"
			if prev, ok := old[id]; ok {
				if oldText, err = pretty(prev); err != nil {
					return "", err
				}
				fromFile = fmt.Sprintf("a/%s/%s", coll, id)
			}
			if oldText == newText {
				continue
			}
			diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(oldText),
				B:        difflib.SplitLines(newText),
				FromFile: fromFile,
				ToFile:   fmt.Sprintf("b/%s/%s", coll, id),
				Context:  3,
			})
			if err != nil {
				return "", err
			}
			out.WriteString(diff)
		}
	}
	return out.String(), nil
}

func index(docs []model.Document) map[string]model.Document {
	out := make(map[string]model.Document, len(docs))
	for _, d := range docs {
		out[d.ID()] = d
	}
	return out
}

func pretty(doc model.Document) (string, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
