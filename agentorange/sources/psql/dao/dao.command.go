package dao

import (
	"agentorange/agentorange/sources/psql/models"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommandDAO struct {
	DB *gorm.DB
}

func NewCommandDAO(db *gorm.DB) *CommandDAO {
	return &CommandDAO{DB: db}
}

func (dao *CommandDAO) SaveCommand(ctx context.Context, cmd *models.ChatCommand) error {
	return dao.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, UpdateAll: true}).
		Create(cmd).Error
}

func (dao *CommandDAO) GetCommand(ctx context.Context, name string) (*models.ChatCommand, error) {
	var cmd models.ChatCommand
	err := dao.DB.WithContext(ctx).First(&cmd, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

func (dao *CommandDAO) GetAllCommands(ctx context.Context) ([]models.ChatCommand, error) {
	var cmds []models.ChatCommand
	if err := dao.DB.WithContext(ctx).Order("timestamp asc").Find(&cmds).Error; err != nil {
		return nil, err
	}
	return cmds, nil
}

func (dao *CommandDAO) DeleteCommand(ctx context.Context, name string) error {
	return dao.DB.WithContext(ctx).Where("name = ?", name).Delete(&models.ChatCommand{}).Error
}
