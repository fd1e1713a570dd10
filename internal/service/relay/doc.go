// Package relay runs the cry relay: it owns the detector state, executes the
// log and notify intents the detector emits, and serves the HTTP API.
package relay
