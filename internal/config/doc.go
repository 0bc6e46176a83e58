// Package config loads, normalizes, and validates PermitFlow's TOML
// configuration.
//
// A single Config value flows through the process at startup; nothing mutates
// it afterward. Load resolves the config path (explicit flag, then the user
// config dir, then a project-local permitflow.toml), fills defaults for every
// absent field, expands ~ in paths, and rejects configurations that would
// violate pipeline invariants such as unbounded browser waits.
package config
