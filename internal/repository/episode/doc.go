// Package episode implements persistence for episode records.
//
// SQLStore appends one row per episode to a fixed table in SQLite or MySQL.
// It connects lazily, drops the cached handle after any failure and retries
// an append once. Nop replaces it when no data source is configured.
package episode
