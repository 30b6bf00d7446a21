package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
	"github.com/chirino/console-migrate/internal/normalize"
	"github.com/chirino/console-migrate/internal/report"
)

// execute applies a plan branch by branch. A failing branch is logged and
// recorded and the remaining branches still run, except after a failed gate
// branch, which leaves the entity as it was for the next run.
func (e *Engine) execute(ctx context.Context, rep *report.RunReport, plan normalize.Plan) {
	for _, a := range plan.Anomalies {
		e.log.Error("Structural anomaly", "entity", a.Collection.Entity(), "id", a.EntityID, "err", a.Message)
		rep.AddFailure(a.Collection, a.EntityID, errors.New(a.Message))
	}
	counts := rep.Counts(plan.Collection)
	if plan.IsNoop() {
		if len(plan.Anomalies) == 0 {
			counts.Unchanged++
		}
		return
	}

	entity := plan.Collection.Entity()
	switch plan.Action {
	case normalize.ActionAttach:
		e.log.Info(fmt.Sprintf("Found %s not linked to cluster", entity), "name", plan.Name, "id", plan.EntityID)
	case normalize.ActionClone:
		e.log.Info(fmt.Sprintf("Found %s linked to many clusters", entity), "name", plan.Name, "cnt", len(plan.Branches))
	case normalize.ActionInfer:
		e.log.Info(fmt.Sprintf("Found %s without cluster", entity), "name", plan.Name, "id", plan.EntityID)
	}

	linked := false
	for _, b := range plan.Branches {
		if err := e.runBranch(ctx, b); err != nil {
			e.branchFailed(rep, plan, b, err)
			if b.Gate {
				e.log.Warn(fmt.Sprintf("Skipped %s", entity), "id", plan.EntityID, "name", plan.Name, "skipped", len(plan.Branches)-1)
				return
			}
			continue
		}
		if b.Inserts() == 0 {
			linked = true
		} else {
			counts.Cloned++
			rep.AddRepair(plan.Collection, b.Target, plan.Name, string(normalize.ActionClone),
				fmt.Sprintf("copy of %s for cluster %s", b.Source, b.Owner))
		}
		e.runChildren(ctx, rep, b)
	}
	if !linked {
		return
	}

	switch plan.Action {
	case normalize.ActionAttach:
		counts.Attached++
		rep.AddRepair(plan.Collection, plan.EntityID, plan.Name, string(plan.Action), "lost-and-found")
	case normalize.ActionInfer:
		counts.Inferred++
		rep.AddRepair(plan.Collection, plan.EntityID, plan.Name, string(plan.Action),
			fmt.Sprintf("cluster %s", plan.Branches[0].Owner))
	case normalize.ActionClone:
		rep.AddRepair(plan.Collection, plan.EntityID, plan.Name, "narrow",
			fmt.Sprintf("kept by cluster %s", plan.Branches[0].Owner))
	}
}

// runChildren runs the domain model branches hanging off a cache branch.
// Each one fails on its own.
func (e *Engine) runChildren(ctx context.Context, rep *report.RunReport, parent normalize.Branch) {
	for _, child := range parent.Children {
		err := e.runBranch(ctx, child)
		switch {
		case err != nil && child.Source != "":
			e.log.Error("Failed to duplicate domain model", "domain", child.Source, "cache", parent.Target, "err", err)
			rep.AddFailure(model.DomainModels, child.Source, fmt.Errorf("duplicate for cache %s: %w", parent.Target, err))
		case err != nil:
			e.log.Error("Failed to link domain model", "domain", child.Target, "cluster", child.Owner, "err", err)
			rep.AddFailure(model.DomainModels, child.Target, fmt.Errorf("link to cluster %s with cache %s: %w", child.Owner, parent.Target, err))
		case child.Inserts() > 0:
			rep.Counts(model.DomainModels).Cloned++
			rep.AddRepair(model.DomainModels, child.Target, "", string(normalize.ActionClone),
				fmt.Sprintf("copy of %s for cache %s", child.Source, parent.Target))
		}
	}
}

func (e *Engine) runBranch(ctx context.Context, b normalize.Branch) error {
	for _, step := range b.Steps {
		if step.IsInsert() {
			if _, err := e.store.Insert(ctx, step.Collection, step.Insert); err != nil {
				return fmt.Errorf("create %s: %w", step.Collection.Entity(), err)
			}
			continue
		}
		if err := e.store.UpdateFields(ctx, step.Collection, step.ID, step.Patch); err != nil {
			return fmt.Errorf("update %s %s: %w", step.Collection.Entity(), step.ID, err)
		}
	}
	return nil
}

func (e *Engine) branchFailed(rep *report.RunReport, plan normalize.Plan, b normalize.Branch, err error) {
	entity := plan.Collection.Entity()
	switch {
	case b.Source != "":
		e.log.Error(fmt.Sprintf("Failed to clone %s", entity), "id", plan.EntityID, "name", plan.Name, "cluster", b.Owner, "err", err)
	default:
		e.log.Error(fmt.Sprintf("Failed to link %s", entity), "id", plan.EntityID, "name", plan.Name, "owner", b.Owner, "err", err)
	}
	rep.AddFailure(plan.Collection, plan.EntityID, fmt.Errorf("owner %s: %w", b.Owner, err))
}
