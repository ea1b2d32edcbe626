//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore SettingsStore.
// Settings are stored as entities of kind Setting keyed by the setting name,
// optionally inside a Datastore namespace so several deployments can share a
// project:
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	settings := gae.NewSettingsStore(client, "tracktime-prod")
package gae
