// Package configs provides the embedded pipeline-definition template used
// to scaffold a new .vpack pipeline config.
//
// The template is embedded at build time via Go's //go:embed directive so
// it is available in every distribution of a host binary without a
// separate data file to ship alongside it.
//
// internal/pipelineconfig.Parse consumes the same YAML shape this template
// follows: a "plugins" list with one source, one chunker, and exactly one
// embedder entry carrying the "dimensions" field the core engine resolves
// at build time.
package configs

import _ "embed"

// PipelineTemplate is a starter pipeline definition a host can write to a
// new project's pipeline.yaml before the user fills in their own source
// paths, chunker settings, and embedder choice.
//
//go:embed pipeline.example.yaml
var PipelineTemplate string
