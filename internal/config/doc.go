// Package config loads the application configuration and manages the
// remote sync configuration.
//
// # Configuration Hierarchy
//
// Application configuration is layered, highest priority last:
//  1. Default values in code
//  2. bytepad.yaml (or .yml, .json) in the config directory
//  3. BYTEPAD_* environment variables
//
// # Sync Configuration
//
// The sync configuration lives in <dataDir>/sync-config.json. The credential
// is never written to disk: the file always stores "token": null and the token
// is kept in memory or provided through BYTEPAD_SYNC_TOKEN. SyncConfigWatcher
// reloads the file when another process edits it.
package config
