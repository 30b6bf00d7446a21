package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/chirino/console-migrate/internal/model"
	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render writes the report in the given format.
func (r *RunReport) Render(w io.Writer, format string) error {
	switch format {
	case "", FormatText:
		return r.renderText(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q; valid: text, json, yaml", format)
	}
}

func (r *RunReport) renderText(w io.Writer) error {
	counts := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("COLLECTION", "DEDUPLICATED", "ATTACHED", "CLONED", "INFERRED", "PROVISIONED", "UNCHANGED", "FAILED")
	for _, c := range model.Collections {
		n := r.Counts(c)
		counts.Row(string(c),
			strconv.Itoa(n.Deduplicated), strconv.Itoa(n.Attached), strconv.Itoa(n.Cloned),
			strconv.Itoa(n.Inferred), strconv.Itoa(n.Provisioned), strconv.Itoa(n.Unchanged), strconv.Itoa(n.Failed))
	}
	if _, err := fmt.Fprintln(w, counts.String()); err != nil {
		return err
	}

	if len(r.Repairs) > 0 {
		repairs := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("COLLECTION", "ID", "NAME", "ACTION", "DETAIL")
		for _, rep := range r.Repairs {
			repairs.Row(string(rep.Collection), rep.EntityID, rep.Name, rep.Action, rep.Detail)
		}
		if _, err := fmt.Fprintln(w, repairs.String()); err != nil {
			return err
		}
	}

	if len(r.Failures) > 0 {
		failures := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("COLLECTION", "ID", "ERROR")
		for _, f := range r.Failures {
			failures.Row(string(f.Collection), f.EntityID, f.Message)
		}
		if _, err := fmt.Fprintln(w, failures.String()); err != nil {
			return err
		}
	}
	return nil
}

// Query evaluates a jq expression over the JSON form of the report and
// writes each result as a line of JSON.
func (r *RunReport) Query(w io.Writer, expr string) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid report query %q: %w", expr, err)
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return err
	}
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := v.(error); ok {
			return fmt.Errorf("report query %q: %w", expr, err)
		}
		line, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(line)); err != nil {
			return err
		}
	}
}
