package controllers

import (
	"agentorange/agentorange/agents/configs"
	"agentorange/agentorange/agents/core"
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/types"
	"context"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

type CommandsController struct {
	engine *core.Engine
	store  core.Store
	runner *Runner
}

func NewCommandsController(engine *core.Engine, store core.Store, runner *Runner) *CommandsController {
	return &CommandsController{engine: engine, store: store, runner: runner}
}

func (c *CommandsController) List(ctx context.Context) ([]models.ChatCommand, error) {
	return c.store.FetchAllCommands(ctx)
}

// Save creates or replaces the command with req.Name.
func (c *CommandsController) Save(ctx context.Context, req types.CommandRequest) (*models.ChatCommand, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	typ := req.Type
	switch typ {
	case "":
		typ = models.AgentTypeCoder
	case models.AgentTypeCoder, models.AgentTypeReviewer:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrValidation, typ)
	}
	temperature := configs.FallbackTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	cmd := &models.ChatCommand{
		Name:             name,
		Timestamp:        models.NextTimestamp(),
		Prompt:           req.Prompt,
		ShortDescription: req.ShortDescription,
		Role:             req.Role,
		Model:            req.Model,
		Host:             req.Host,
		Temperature:      temperature,
		Type:             typ,
		InputCodeID:      req.InputCodeID,
		DependencyIDs:    datatypes.JSONSlice[string](req.DependencyIDs),
	}
	if err := c.store.AddCommand(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (c *CommandsController) Delete(ctx context.Context, name string) error {
	return c.store.DeleteCommand(ctx, name)
}

// Run starts the named command in the background.
func (c *CommandsController) Run(ctx context.Context, name string, req types.RunContextRequest) (types.RunResponse, error) {
	cmd, err := c.store.FetchCommand(ctx, name)
	if err != nil {
		return types.RunResponse{}, err
	}
	if cmd == nil {
		return types.RunResponse{}, fmt.Errorf("%w: command %q", ErrNotFound, name)
	}
	rc := runContext(req)
	rc.LaneID = c.engine.Reserve()
	c.runner.Go(rc.LaneID, func(ctx context.Context) error {
		_, err := c.engine.RunCommand(ctx, *cmd, rc)
		return err
	})
	return types.RunResponse{LaneID: rc.LaneID, GroupID: rc.GroupID, Command: cmd.Name}, nil
}
