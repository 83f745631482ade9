// Package configs provides the embedded configuration template for cranbench.
//
// The template is embedded at build time so 'cranbench config init' works
// from any distribution. Edit cranbench.example.yaml and rebuild to change it;
// keys must match internal/config.Config.
package configs

import _ "embed"

// ConfigTemplate is written by 'cranbench config init' as cranbench.yaml.
//
//go:embed cranbench.example.yaml
var ConfigTemplate string
