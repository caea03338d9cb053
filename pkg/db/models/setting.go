package models

import "time"

// Setting is a platform-wide key/value knob such as a fee percentage.
type Setting struct {
	Key       string    `gorm:"column:key;type:varchar(128);primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string { return "settings" }
