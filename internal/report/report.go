// Package report holds the outcome of a migration run.
package report

import (
	"fmt"
	"time"

	"github.com/chirino/console-migrate/internal/model"
)

// Counts are per-collection tallies.
type Counts struct {
	Deduplicated int `json:"deduplicated" yaml:"deduplicated"`
	Attached     int `json:"attached"     yaml:"attached"`
	Cloned       int `json:"cloned"       yaml:"cloned"`
	Inferred     int `json:"inferred"     yaml:"inferred"`
	Provisioned  int `json:"provisioned"  yaml:"provisioned"`
	Unchanged    int `json:"unchanged"    yaml:"unchanged"`
	Failed       int `json:"failed"       yaml:"failed"`
}

// Repair records one fix applied to an entity.
type Repair struct {
	Collection model.Collection `json:"collection"       yaml:"collection"`
	EntityID   string           `json:"entityId"         yaml:"entityId"`
	Name       string           `json:"name,omitempty"   yaml:"name,omitempty"`
	Action     string           `json:"action"           yaml:"action"`
	Detail     string           `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Failure records an item that could not be repaired.
type Failure struct {
	Collection model.Collection `json:"collection" yaml:"collection"`
	EntityID   string           `json:"entityId"   yaml:"entityId"`
	Message    string           `json:"message"    yaml:"message"`
}

// RunReport is returned by a migration run. It is a plain value: each run
// builds its own.
type RunReport struct {
	StartedAt   time.Time                   `json:"startedAt"   yaml:"startedAt"`
	FinishedAt  time.Time                   `json:"finishedAt"  yaml:"finishedAt"`
	DryRun      bool                        `json:"dryRun"      yaml:"dryRun"`
	Collections map[model.Collection]*Counts `json:"collections" yaml:"collections"`
	Repairs     []Repair                    `json:"repairs"     yaml:"repairs"`
	Failures    []Failure                   `json:"failures"    yaml:"failures"`
}

// New returns an empty report with counters for every collection.
func New() *RunReport {
	r := &RunReport{
		StartedAt:   time.Now().UTC(),
		Collections: map[model.Collection]*Counts{},
		Repairs:     []Repair{},
		Failures:    []Failure{},
	}
	for _, c := range model.Collections {
		r.Collections[c] = &Counts{}
	}
	return r
}

// Counts returns the tallies for a collection.
func (r *RunReport) Counts(c model.Collection) *Counts {
	counts, ok := r.Collections[c]
	if !ok {
		counts = &Counts{}
		r.Collections[c] = counts
	}
	return counts
}

// AddRepair appends a repair entry.
func (r *RunReport) AddRepair(c model.Collection, id, name, action, detail string) {
	r.Repairs = append(r.Repairs, Repair{Collection: c, EntityID: id, Name: name, Action: action, Detail: detail})
}

// AddFailure appends a failure and bumps the collection's failure count.
func (r *RunReport) AddFailure(c model.Collection, id string, err error) {
	r.Counts(c).Failed++
	r.Failures = append(r.Failures, Failure{Collection: c, EntityID: id, Message: err.Error()})
}

// HasFailures reports whether any item failed.
func (r *RunReport) HasFailures() bool { return len(r.Failures) > 0 }

// Finish stamps the end time.
func (r *RunReport) Finish() { r.FinishedAt = time.Now().UTC() }

// Summary is a one-line digest for logs.
func (r *RunReport) Summary() string {
	var total Counts
	for _, c := range r.Collections {
		total.Deduplicated += c.Deduplicated
		total.Attached += c.Attached
		total.Cloned += c.Cloned
		total.Inferred += c.Inferred
		total.Provisioned += c.Provisioned
	}
	return fmt.Sprintf("deduplicated=%d attached=%d cloned=%d inferred=%d provisioned=%d failures=%d",
		total.Deduplicated, total.Attached, total.Cloned, total.Inferred, total.Provisioned, len(r.Failures))
}
