package controllers

import (
	"agentorange/agentorange/agents/core"
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/types"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type WorkflowsController struct {
	engine *core.Engine
	store  core.Store
	runner *Runner
}

func NewWorkflowsController(engine *core.Engine, store core.Store, runner *Runner) *WorkflowsController {
	return &WorkflowsController{engine: engine, store: store, runner: runner}
}

func (c *WorkflowsController) List(ctx context.Context) ([]models.Workflow, error) {
	return c.store.FetchAllWorkflows(ctx)
}

func (c *WorkflowsController) Save(ctx context.Context, req types.WorkflowRequest) (*models.Workflow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	w := &models.Workflow{
		Name:             name,
		Timestamp:        models.NextTimestamp(),
		ShortDescription: req.ShortDescription,
	}
	arrangement := req.Arrangement
	if arrangement == nil {
		arrangement = [][]string{}
	}
	if err := w.SetGroups(arrangement); err != nil {
		return nil, err
	}
	if err := c.store.AddWorkflow(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (c *WorkflowsController) Delete(ctx context.Context, name string) error {
	return c.store.DeleteWorkflow(ctx, name)
}

// Run starts the named workflow in the background.
func (c *WorkflowsController) Run(ctx context.Context, name string, req types.RunContextRequest) (types.RunResponse, error) {
	w, err := c.store.FetchWorkflow(ctx, name)
	if err != nil {
		return types.RunResponse{}, err
	}
	if w == nil {
		return types.RunResponse{}, fmt.Errorf("%w: workflow %q", ErrNotFound, name)
	}
	rc := runContext(req)
	c.runner.Go("workflow-"+uuid.NewString(), func(ctx context.Context) error {
		return c.engine.RunWorkflow(ctx, *w, rc)
	})
	return types.RunResponse{GroupID: rc.GroupID, Workflow: w.Name}, nil
}
