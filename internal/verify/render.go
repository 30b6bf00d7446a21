package verify

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/chirino/console-migrate/internal/report"
	"gopkg.in/yaml.v3"
)

// Render writes violations in one of the report formats. Structured formats
// always emit a list, empty when the store is consistent.
func Render(w io.Writer, violations []Violation, format string) error {
	if violations == nil {
		violations = []Violation{}
	}
	switch format {
	case "", report.FormatText:
		for _, v := range violations {
			if _, err := fmt.Fprintln(w, v.String()); err != nil {
				return err
			}
		}
		return nil
	case report.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(violations)
	case report.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(violations); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q; valid: text, json, yaml", format)
	}
}
