package controllers

import (
	"agentorange/agentorange/agents/core"
	"agentorange/agentorange/services/history"
	"agentorange/agentorange/services/socket"
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/types"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ChatController struct {
	engine *core.Engine
	store  core.Store
	hub    *socket.Hub
	runner *Runner
}

func NewChatController(engine *core.Engine, store core.Store, hub *socket.Hub, runner *Runner) *ChatController {
	return &ChatController{engine: engine, store: store, hub: hub, runner: runner}
}

// Send accepts a chat turn and streams the reply in the background. A missing
// group id starts a new conversation.
func (c *ChatController) Send(ctx context.Context, req types.ChatRequest) (types.RunResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return types.RunResponse{}, fmt.Errorf("%w: content is required", ErrValidation)
	}
	rc := runContext(req.RunContextRequest)
	rc.LaneID = c.engine.Reserve()

	chat := core.ChatRequest{
		RunContext:  rc,
		Text:        req.Content,
		Host:        req.Host,
		Model:       req.Model,
		Temperature: req.Temperature,
		Role:        req.Role,
	}
	c.runner.Go(rc.LaneID, func(ctx context.Context) error {
		_, err := c.engine.Chat(ctx, chat)
		return err
	})
	return types.RunResponse{LaneID: rc.LaneID, GroupID: rc.GroupID}, nil
}

func (c *ChatController) Messages(ctx context.Context, groupID string) ([]models.ChatMessage, error) {
	return c.store.FetchMessages(ctx, groupID)
}

func (c *ChatController) CodeSnippets(ctx context.Context, groupID string) ([]models.CodeSnippet, error) {
	return c.store.FetchCodeSnippets(ctx, groupID)
}

func (c *ChatController) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids are required", ErrValidation)
	}
	return c.store.DeleteMessages(ctx, ids)
}

func (c *ChatController) DeleteGroup(ctx context.Context, groupID string) error {
	return c.store.DeleteGroup(ctx, groupID)
}

func (c *ChatController) ActiveLanes() []string {
	return c.engine.Lanes().Active()
}

func (c *ChatController) CancelLane(laneID string) bool {
	return c.engine.Cancel(laneID)
}

func (c *ChatController) CancelAll() int {
	return c.engine.CancelAll()
}

func (c *ChatController) Subscribe(groupID string) *socket.Client {
	return c.hub.Subscribe(groupID)
}

func (c *ChatController) Unsubscribe(client *socket.Client) {
	c.hub.Unsubscribe(client)
}

func runContext(req types.RunContextRequest) core.RunContext {
	groupID := strings.TrimSpace(req.GroupID)
	if groupID == "" {
		groupID = uuid.NewString()
	}
	var rows map[int]struct{}
	if len(req.SelectedRows) > 0 {
		rows = history.Rows(req.SelectedRows)
	}
	return core.RunContext{
		GroupID:      groupID,
		FileContent:  req.FileContent,
		SelectedRows: rows,
		Options:      req.HistoryOptions(),
	}
}
