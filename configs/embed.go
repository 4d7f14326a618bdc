// Package configs embeds the configuration template written by
// `geoidx config init`.
//
// Edit geoidx.example.yaml and rebuild to change it.
package configs

import _ "embed"

// Template is the commented example configuration. It is valid as both a
// user config and a project .geoidx.yaml.
//
//go:embed geoidx.example.yaml
var Template string
