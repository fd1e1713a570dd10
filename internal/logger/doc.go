// Package logger wraps zap with the helpers the relay uses everywhere:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and adjustment,
//   - leveled shortcuts (Infof, WarnKV, ErrorKV, ...).
//
// Request handlers, the detector and the adapters all take a context and pull
// the logger out of it, so fields attached upstream (request path, chat id)
// show up on every line logged downstream.
package logger
