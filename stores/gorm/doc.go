//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based SettingsStore.
// It supports any database that GORM supports (PostgreSQL, MySQL, SQLite, etc.).
//
// # Database Schema
//
// The package auto-migrates a single table:
//   - settings: one row per setting key
//
// # Usage
//
//	db, _ := gorm.Open(sqlite.Open("tracktime.db"), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	settings := gormstore.NewSettingsStore(db)
package gorm
