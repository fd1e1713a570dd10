// Package version exposes build metadata for the relay.
//
// Version, Commit and BuildTime are injected via -ldflags at build time and
// default to placeholder values for local builds.
package version
