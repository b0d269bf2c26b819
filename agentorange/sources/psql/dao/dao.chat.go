package dao

import (
	"agentorange/agentorange/sources/psql/models"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatMessageDAO struct {
	DB *gorm.DB
}

func NewChatMessageDAO(db *gorm.DB) *ChatMessageDAO {
	return &ChatMessageDAO{DB: db}
}

// SaveMessage inserts msg or overwrites the stored row with the same id.
func (dao *ChatMessageDAO) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	return dao.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(msg).Error
}

func (dao *ChatMessageDAO) GetMessagesByGroup(ctx context.Context, groupID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := dao.DB.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("timestamp asc").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (dao *ChatMessageDAO) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return dao.DB.WithContext(ctx).Where("id IN ?", ids).Delete(&models.ChatMessage{}).Error
}

func (dao *ChatMessageDAO) DeleteGroup(ctx context.Context, groupID string) error {
	return dao.DB.WithContext(ctx).Where("group_id = ?", groupID).Delete(&models.ChatMessage{}).Error
}
