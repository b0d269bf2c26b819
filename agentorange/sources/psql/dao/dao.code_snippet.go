package dao

import (
	"agentorange/agentorange/sources/psql/models"
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CodeSnippetDAO struct {
	DB *gorm.DB
}

func NewCodeSnippetDAO(db *gorm.DB) *CodeSnippetDAO {
	return &CodeSnippetDAO{DB: db}
}

func (dao *CodeSnippetDAO) CreateSnippet(ctx context.Context, title, code, subTitle, groupID string) (*models.CodeSnippet, error) {
	snippet := &models.CodeSnippet{
		ID:        uuid.NewString(),
		Timestamp: models.NextTimestamp(),
		Title:     title,
		Code:      code,
		SubTitle:  subTitle,
		GroupID:   groupID,
	}
	if err := dao.DB.WithContext(ctx).Create(snippet).Error; err != nil {
		return nil, err
	}
	return snippet, nil
}

func (dao *CodeSnippetDAO) GetSnippetsByGroup(ctx context.Context, groupID string) ([]models.CodeSnippet, error) {
	var snippets []models.CodeSnippet
	err := dao.DB.WithContext(ctx).Where("group_id = ?", groupID).Order("timestamp asc").Find(&snippets).Error
	if err != nil {
		return nil, err
	}
	return snippets, nil
}

func (dao *CodeSnippetDAO) DeleteGroup(ctx context.Context, groupID string) error {
	return dao.DB.WithContext(ctx).Where("group_id = ?", groupID).Delete(&models.CodeSnippet{}).Error
}
