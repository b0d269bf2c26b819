package dao

import (
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/logging"
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const commandsSeededKey = "builtin_commands_seeded"

// Gateway is the persistence boundary used by the engine and the controllers.
type Gateway struct {
	db        *gorm.DB
	messages  *ChatMessageDAO
	snippets  *CodeSnippetDAO
	commands  *CommandDAO
	workflows *WorkflowDAO
	settings  *SettingDAO
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{
		db:        db,
		messages:  NewChatMessageDAO(db),
		snippets:  NewCodeSnippetDAO(db),
		commands:  NewCommandDAO(db),
		workflows: NewWorkflowDAO(db),
		settings:  NewSettingDAO(db),
	}
}

func (g *Gateway) AddMessage(ctx context.Context, msg *models.ChatMessage) error {
	return g.messages.SaveMessage(ctx, msg)
}

func (g *Gateway) DeleteMessages(ctx context.Context, ids []string) error {
	return g.messages.DeleteMessages(ctx, ids)
}

func (g *Gateway) FetchMessages(ctx context.Context, groupID string) ([]models.ChatMessage, error) {
	return g.messages.GetMessagesByGroup(ctx, groupID)
}

func (g *Gateway) AddCodeSnippet(ctx context.Context, title, code, subTitle, groupID string) (*models.CodeSnippet, error) {
	return g.snippets.CreateSnippet(ctx, title, code, subTitle, groupID)
}

func (g *Gateway) FetchCodeSnippets(ctx context.Context, groupID string) ([]models.CodeSnippet, error) {
	return g.snippets.GetSnippetsByGroup(ctx, groupID)
}

// DeleteGroup removes every message and code snippet of a conversation.
func (g *Gateway) DeleteGroup(ctx context.Context, groupID string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewChatMessageDAO(tx).DeleteGroup(ctx, groupID); err != nil {
			return err
		}
		return NewCodeSnippetDAO(tx).DeleteGroup(ctx, groupID)
	})
}

func (g *Gateway) AddCommand(ctx context.Context, cmd *models.ChatCommand) error {
	return g.commands.SaveCommand(ctx, cmd)
}

func (g *Gateway) DeleteCommand(ctx context.Context, name string) error {
	return g.commands.DeleteCommand(ctx, name)
}

func (g *Gateway) FetchCommand(ctx context.Context, name string) (*models.ChatCommand, error) {
	return g.commands.GetCommand(ctx, name)
}

func (g *Gateway) FetchAllCommands(ctx context.Context) ([]models.ChatCommand, error) {
	return g.commands.GetAllCommands(ctx)
}

func (g *Gateway) AddWorkflow(ctx context.Context, w *models.Workflow) error {
	return g.workflows.SaveWorkflow(ctx, w)
}

func (g *Gateway) DeleteWorkflow(ctx context.Context, name string) error {
	return g.workflows.DeleteWorkflow(ctx, name)
}

func (g *Gateway) FetchWorkflow(ctx context.Context, name string) (*models.Workflow, error) {
	return g.workflows.GetWorkflow(ctx, name)
}

func (g *Gateway) FetchAllWorkflows(ctx context.Context) ([]models.Workflow, error) {
	return g.workflows.GetAllWorkflows(ctx)
}

// SeedCommands stores cmds once per database. It reports whether it seeded;
// later calls are no-ops even if the user deleted the built-ins.
func (g *Gateway) SeedCommands(ctx context.Context, cmds []models.ChatCommand) (bool, error) {
	seeded := false
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings := NewSettingDAO(tx)
		_, done, err := settings.Get(ctx, commandsSeededKey)
		if err != nil || done {
			return err
		}
		commands := NewCommandDAO(tx)
		for i := range cmds {
			if err := commands.SaveCommand(ctx, &cmds[i]); err != nil {
				return fmt.Errorf("seed command %q: %w", cmds[i].Name, err)
			}
		}
		seeded = true
		return settings.Set(ctx, commandsSeededKey, "true")
	})
	if err != nil {
		logging.ErrorLogger.Error("seeding commands failed", zap.Error(err))
		return false, err
	}
	if seeded {
		logging.AppLogger.Info("seeded built-in commands", zap.Int("count", len(cmds)))
	}
	return seeded, nil
}
