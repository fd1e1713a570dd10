// Package config defines the relay settings and loads them from a YAML file
// with environment variable overrides.
//
// Credentials (bot token, chat id, store DSN) normally come from the
// environment; timings and addresses usually live in the YAML file. Validate
// fills defaults for anything left unset.
package config
