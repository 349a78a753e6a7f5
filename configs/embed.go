// Package configs provides embedded configuration templates for ragstore.
//
// Templates are embedded at build time so `ragstore config init` works for
// source builds and binary releases alike.
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/ragstore/config.yaml)
//  3. Project config (.ragstore.yaml)
//  4. Environment variables (RAGSTORE_*)
package configs

import _ "embed"

// ConfigTemplate is the commented template written by `ragstore config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
