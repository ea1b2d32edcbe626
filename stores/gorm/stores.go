//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	tt "github.com/panyam/tracktime"
)

// AutoMigrate runs database migrations for the settings table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&SettingModel{})
}

// SettingsStore implements tt.SettingsStore using GORM
type SettingsStore struct {
	db *gorm.DB
}

func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var model SettingModel
	err := s.db.WithContext(ctx).Where("setting_key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.Value, true, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) (*tt.Setting, error) {
	model := &SettingModel{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return nil, err
	}
	return model.ToSetting(), nil
}

func (s *SettingsStore) Delete(ctx context.Context, key string) (bool, error) {
	res := s.db.WithContext(ctx).Where("setting_key = ?", key).Delete(&SettingModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
