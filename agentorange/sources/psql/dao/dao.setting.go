package dao

import (
	"agentorange/agentorange/sources/psql/models"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingDAO struct {
	DB *gorm.DB
}

func NewSettingDAO(db *gorm.DB) *SettingDAO {
	return &SettingDAO{DB: db}
}

// Get returns the stored value and whether the key exists.
func (dao *SettingDAO) Get(ctx context.Context, key string) (string, bool, error) {
	var s models.Setting
	err := dao.DB.WithContext(ctx).First(&s, "setting_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (dao *SettingDAO) Set(ctx context.Context, key, value string) error {
	return dao.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "setting_key"}}, UpdateAll: true}).
		Create(&models.Setting{Key: key, Value: value}).Error
}
