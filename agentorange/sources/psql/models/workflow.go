package models

import (
	"agentorange/agentorange/utils/jsonutils"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// WaitCommandID marks a barrier slot in an arrangement. The engine treats it as a no-op.
const WaitCommandID = "<wait>"

type Workflow struct {
	Name             string         `json:"name" gorm:"type:varchar(255);primaryKey"`
	Timestamp        time.Time      `json:"timestamp" gorm:"not null"`
	ShortDescription string         `json:"short_description" gorm:"type:varchar(512);default:''"`
	Arrangement      datatypes.JSON `json:"arrangement" gorm:"type:json"`
}

func (Workflow) TableName() string {
	return "workflows"
}

// Groups decodes the arrangement. An empty or malformed arrangement yields nil;
// the latter is logged.
func (w Workflow) Groups() [][]string {
	return jsonutils.ParseArrangement(w.Arrangement)
}

// SetGroups encodes groups into the arrangement column.
func (w *Workflow) SetGroups(groups [][]string) error {
	raw, err := json.Marshal(groups)
	if err != nil {
		return err
	}
	w.Arrangement = datatypes.JSON(raw)
	return nil
}
