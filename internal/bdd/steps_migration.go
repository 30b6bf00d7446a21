package bdd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/console-migrate/internal/migration"
	"github.com/chirino/console-migrate/internal/model"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/chirino/console-migrate/internal/report"
	"github.com/chirino/console-migrate/internal/testutil/cucumber"
	"github.com/chirino/console-migrate/internal/testutil/teststore"
	"github.com/chirino/console-migrate/internal/verify"
	"github.com/cucumber/godog"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		m := &migrationSteps{s: s}
		ctx.Step(`^creating a cache copy for cluster "([^"]*)" fails$`, m.creatingACacheCopyForClusterFails)
		ctx.Step(`^I run the migration$`, m.iRunTheMigration)
		ctx.Step(`^I run the migration again$`, m.iRunTheMigrationAgain)
		ctx.Step(`^the second run should write nothing$`, m.theSecondRunShouldWriteNothing)
		ctx.Step(`^the report should contain:$`, m.theReportShouldContain)
		ctx.Step(`^the report should list (\d+) failures?$`, m.theReportShouldListFailures)
		ctx.Step(`^every cache, IGFS and domain model should have exactly one owner$`, m.everyEntityHasOneOwner)
	})
}

type migrationSteps struct {
	s *cucumber.TestScenario

	failInsertFor string
	counting      *teststore.Counting
	report        *report.RunReport
}

func (m *migrationSteps) creatingACacheCopyForClusterFails(cluster string) error {
	id, ok := m.s.Variables[cluster].(string)
	if !ok {
		return fmt.Errorf("no cluster is known as %q", cluster)
	}
	m.failInsertFor = id
	return nil
}

func (m *migrationSteps) run(store registrystore.DocumentStore) error {
	engine := migration.New(store, migration.Options{Logger: log.New(io.Discard)})
	rep, err := engine.Run(context.Background())
	if err != nil {
		return err
	}
	m.report = rep
	m.s.Variables["report"] = rep
	return m.bindFallbacks()
}

func (m *migrationSteps) iRunTheMigration() error {
	var store registrystore.DocumentStore = m.s.Store
	if m.failInsertFor != "" {
		target := m.failInsertFor
		store = &teststore.Faulty{
			DocumentStore: store,
			FailInsert: func(coll model.Collection, doc model.Document) error {
				if coll == model.Caches && strings.Join(doc.Refs(model.FieldClusters), ",") == target {
					return errors.New("injected write failure")
				}
				return nil
			},
		}
	}
	return m.run(store)
}

func (m *migrationSteps) iRunTheMigrationAgain() error {
	m.counting = teststore.NewCounting(m.s.Store)
	return m.run(m.counting)
}

// bindFallbacks makes the lost-and-found documents addressable by name.
func (m *migrationSteps) bindFallbacks() error {
	for coll, name := range map[model.Collection]string{
		model.Clusters: migration.DefaultFallbackClusterName,
		model.Caches:   migration.DefaultFallbackCacheName,
	} {
		doc, err := m.s.Store.FindOne(context.Background(), coll, registrystore.ByName(name))
		if registrystore.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		m.s.Variables[name] = doc.ID()
	}
	return nil
}

func (m *migrationSteps) theSecondRunShouldWriteNothing() error {
	if m.counting == nil {
		return fmt.Errorf("the migration was not run again")
	}
	if n := m.counting.Writes(); n != 0 {
		return fmt.Errorf("expected no writes on the second run, got %d updates and %d inserts", m.counting.Updates, m.counting.Inserts)
	}
	return nil
}

func (m *migrationSteps) theReportShouldContain(body *godog.DocString) error {
	if m.report == nil {
		return fmt.Errorf("the migration has not run")
	}
	var buf bytes.Buffer
	if err := m.report.Render(&buf, report.FormatJSON); err != nil {
		return err
	}
	return m.s.JSONMustContain(buf.String(), body.Content, true)
}

func (m *migrationSteps) theReportShouldListFailures(expected int) error {
	if m.report == nil {
		return fmt.Errorf("the migration has not run")
	}
	if got := len(m.report.Failures); got != expected {
		return fmt.Errorf("expected %d failures, got %d: %v", expected, got, m.report.Failures)
	}
	return nil
}

func (m *migrationSteps) everyEntityHasOneOwner() error {
	snap, err := verify.Load(context.Background(), m.s.Store)
	if err != nil {
		return err
	}
	if violations := verify.Check(snap); len(violations) > 0 {
		lines := make([]string, len(violations))
		for i, v := range violations {
			lines[i] = v.String()
		}
		return fmt.Errorf("invariants do not hold:\n%s", strings.Join(lines, "\n"))
	}
	return nil
}
