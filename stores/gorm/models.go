//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	tt "github.com/panyam/tracktime"
)

// SettingModel is the GORM model for settings
type SettingModel struct {
	Key       string    `gorm:"column:setting_key;primaryKey;size:128"`
	Value     string    `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SettingModel) TableName() string { return "settings" }

func (m *SettingModel) ToSetting() *tt.Setting {
	return &tt.Setting{
		Key:       m.Key,
		Value:     m.Value,
		UpdatedAt: m.UpdatedAt,
	}
}
