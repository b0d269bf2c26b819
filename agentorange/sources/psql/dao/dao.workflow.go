package dao

import (
	"agentorange/agentorange/sources/psql/models"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WorkflowDAO struct {
	DB *gorm.DB
}

func NewWorkflowDAO(db *gorm.DB) *WorkflowDAO {
	return &WorkflowDAO{DB: db}
}

func (dao *WorkflowDAO) SaveWorkflow(ctx context.Context, w *models.Workflow) error {
	return dao.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, UpdateAll: true}).
		Create(w).Error
}

func (dao *WorkflowDAO) GetWorkflow(ctx context.Context, name string) (*models.Workflow, error) {
	var w models.Workflow
	err := dao.DB.WithContext(ctx).First(&w, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (dao *WorkflowDAO) GetAllWorkflows(ctx context.Context) ([]models.Workflow, error) {
	var workflows []models.Workflow
	if err := dao.DB.WithContext(ctx).Order("timestamp asc").Find(&workflows).Error; err != nil {
		return nil, err
	}
	return workflows, nil
}

func (dao *WorkflowDAO) DeleteWorkflow(ctx context.Context, name string) error {
	return dao.DB.WithContext(ctx).Where("name = ?", name).Delete(&models.Workflow{}).Error
}
