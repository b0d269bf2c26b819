package models

type Setting struct {
	Key   string `json:"key" gorm:"column:setting_key;type:varchar(255);primaryKey"`
	Value string `json:"value" gorm:"type:text;not null"`
}

func (Setting) TableName() string {
	return "settings"
}
