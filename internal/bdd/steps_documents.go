package bdd

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/chirino/console-migrate/internal/model"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		d := &documentSteps{s: s}
		ctx.Step(`^the following (clusters|caches|domain models|IGFS) exist:$`, d.theFollowingExist)
		ctx.Step(`^(?:the )?(cluster|cache|domain model|IGFS) "([^"]*)" has payload:$`, d.hasPayload)
		ctx.Step(`^(?:the )?(cluster|cache|domain model|IGFS) "([^"]*)" should have (\w+) "([^"]*)"$`, d.shouldHaveRefs)
		ctx.Step(`^(?:the )?(cluster|cache|domain model|IGFS) "([^"]*)" should have no (\w+)$`, d.shouldHaveNoRefs)
		ctx.Step(`^(?:the )?(cluster|cache|domain model|IGFS) "([^"]*)" should contain:$`, d.shouldContain)
		ctx.Step(`^there should be (\d+) (clusters|caches|domain models|IGFS) named "([^"]*)"$`, d.thereShouldBeNamed)
		ctx.Step(`^the copy of (cache|IGFS) "([^"]*)" in cluster "([^"]*)" is known as "([^"]*)"$`, d.copyIsKnownAs)
		ctx.Step(`^the only (domain model) of cache "([^"]*)" is known as "([^"]*)"$`, d.onlyDomainIsKnownAs)
	})
}

type documentSteps struct {
	s *cucumber.TestScenario
}

func collectionOf(entity string) (model.Collection, error) {
	switch entity {
	case "cluster", "clusters":
		return model.Clusters, nil
	case "cache", "caches":
		return model.Caches, nil
	case "domain model", "domain models":
		return model.DomainModels, nil
	case "IGFS":
		return model.Filesystems, nil
	}
	return "", fmt.Errorf("unknown entity %q", entity)
}

// alias returns the store key bound to a feature-file name, minting one on first use.
func (d *documentSteps) alias(name string) string {
	if id, ok := d.s.Variables[name].(string); ok {
		return id
	}
	id := d.s.Store.NewID()
	d.s.Variables[name] = id
	return id
}

func (d *documentSteps) aliases(list string) []string {
	out := []string{}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, d.alias(part))
	}
	return out
}

// lookup resolves an existing alias without minting one.
func (d *documentSteps) lookup(name string) (string, error) {
	id, ok := d.s.Variables[name].(string)
	if !ok {
		return "", fmt.Errorf("no document is known as %q", name)
	}
	return id, nil
}

func (d *documentSteps) get(entity, name string) (model.Document, error) {
	coll, err := collectionOf(entity)
	if err != nil {
		return nil, err
	}
	id, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	return d.s.Store.FindOne(context.Background(), coll, registrystore.ByID(id))
}

func (d *documentSteps) theFollowingExist(entity string, table *godog.Table) error {
	coll, err := collectionOf(entity)
	if err != nil {
		return err
	}
	if len(table.Rows) < 2 {
		return fmt.Errorf("table needs a header row and at least one document")
	}
	header := table.Rows[0].Cells
	for _, row := range table.Rows[1:] {
		doc := model.Document{}
		for i, cell := range row.Cells {
			field := header[i].Value
			switch {
			case field == "alias":
				doc[model.FieldID] = d.alias(cell.Value)
			case model.IsRefField(field):
				doc[field] = d.aliases(cell.Value)
			default:
				doc[field] = cell.Value
			}
		}
		if doc.ID() == "" {
			return fmt.Errorf("every row needs an alias column")
		}
		if _, err := d.s.Store.Insert(context.Background(), coll, doc); err != nil {
			return err
		}
	}
	return nil
}

func (d *documentSteps) hasPayload(entity, name string, body *godog.DocString) error {
	coll, err := collectionOf(entity)
	if err != nil {
		return err
	}
	id, err := d.lookup(name)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(body.Content), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	patch := registrystore.Patch{Set: payload}
	return d.s.Store.UpdateFields(context.Background(), coll, id, patch)
}

func (d *documentSteps) shouldHaveRefs(entity, name, field, expected string) error {
	doc, err := d.get(entity, name)
	if err != nil {
		return err
	}
	want := []string{}
	for _, part := range strings.Split(expected, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := d.lookup(part)
		if err != nil {
			return err
		}
		want = append(want, id)
	}
	got := doc.Refs(field)
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("%s %q %s: expected %v (%s), got %v", entity, name, field, want, expected, d.names(got))
	}
	return nil
}

func (d *documentSteps) shouldHaveNoRefs(entity, name, field string) error {
	doc, err := d.get(entity, name)
	if err != nil {
		return err
	}
	if got := doc.Refs(field); len(got) != 0 {
		return fmt.Errorf("%s %q %s: expected none, got %v", entity, name, field, d.names(got))
	}
	return nil
}

func (d *documentSteps) shouldContain(entity, name string, body *godog.DocString) error {
	doc, err := d.get(entity, name)
	if err != nil {
		return err
	}
	actual, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return d.s.JSONMustContain(string(actual), body.Content, true)
}

func (d *documentSteps) thereShouldBeNamed(expected int, entity, name string) error {
	coll, err := collectionOf(entity)
	if err != nil {
		return err
	}
	docs, err := d.s.Store.FindAll(context.Background(), coll)
	if err != nil {
		return err
	}
	n := 0
	for _, doc := range docs {
		if doc.Name() == name {
			n++
		}
	}
	if n != expected {
		return fmt.Errorf("expected %d %s named %q, found %d", expected, entity, name, n)
	}
	return nil
}

func (d *documentSteps) copyIsKnownAs(entity, original, cluster, alias string) error {
	field := model.FieldCaches
	coll := model.Caches
	if entity == "IGFS" {
		field = model.FieldIgfss
		coll = model.Filesystems
	}
	originalID, err := d.lookup(original)
	if err != nil {
		return err
	}
	owner, err := d.get("cluster", cluster)
	if err != nil {
		return err
	}
	source, err := d.get(entity, original)
	if err != nil {
		return err
	}
	for _, id := range owner.Refs(field) {
		if id == originalID {
			continue
		}
		doc, err := d.s.Store.FindOne(context.Background(), coll, registrystore.ByID(id))
		if err != nil {
			return err
		}
		if doc.Name() == source.Name() {
			d.s.Variables[alias] = id
			return nil
		}
	}
	return fmt.Errorf("cluster %q has no copy of %s %q", cluster, entity, original)
}

func (d *documentSteps) onlyDomainIsKnownAs(_ string, cache, alias string) error {
	doc, err := d.get("cache", cache)
	if err != nil {
		return err
	}
	domains := doc.Refs(model.FieldDomains)
	if len(domains) != 1 {
		return fmt.Errorf("cache %q has %d domain models", cache, len(domains))
	}
	d.s.Variables[alias] = domains[0]
	return nil
}

// names maps keys back to their aliases for readable failures.
func (d *documentSteps) names(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id
		for name, v := range d.s.Variables {
			if v == id {
				out[i] = name
				break
			}
		}
	}
	return out
}
