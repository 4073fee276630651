// Package storage persists the kiosk's settings as string key/value pairs.
//
// Drivers:
//   - "memory": process-local map; nothing survives a restart
//   - "file": JSON snapshot plus an append-only JSON Lines journal on an afero.Fs
//   - "sqlite": one table in a SQLite database file (modernc.org/sqlite)
//
// Apply is the only write path. Every call is one batch that lands in full
// or not at all.
package storage
