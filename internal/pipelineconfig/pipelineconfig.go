// Package pipelineconfig loads a YAML-authored pipeline definition — the
// plugins that produced a pack (source, chunker, embedder, ...) — and
// compiles it into the canonical JSON manifest the core engine consumes.
// Everything beyond the embedder's "dimensions" field is opaque to the
// core and carried through as pipeline-defined metadata.
//
// This is ambient configuration plumbing, not part of the core engine
// contract; it exists so a host can author pipelines as a version-controlled
// YAML file instead of hand-writing the JSON manifest directly.
package pipelineconfig

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vpackhq/vpack-go/internal/vpkerr"
	"github.com/vpackhq/vpack-go/pkg/vpack"
)

// Plugin is one stage of a pipeline: a source, a chunker, or an embedder.
// Kind distinguishes these; Dimensions holds the embedder's "dimensions",
// and Config carries stage-specific settings the core never inspects.
type Plugin struct {
	Kind       string         `yaml:"kind" json:"kind"`
	Name       string         `yaml:"name" json:"name"`
	Dimensions int            `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Config     map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Pipeline is the YAML-authored description of how a pack was built.
type Pipeline struct {
	Version int            `yaml:"version" json:"version"`
	Name    string         `yaml:"name" json:"name"`
	Plugins []Plugin       `yaml:"plugins" json:"plugins"`
	Extra   map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Load reads and parses a pipeline definition from a YAML file.
func Load(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("pipelineconfig: read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return Pipeline{}, err
	}
	slog.Debug("pipelineconfig: loaded pipeline", "path", path, "plugins", len(p.Plugins))
	return p, nil
}

// Parse parses a pipeline definition from YAML bytes.
func Parse(data []byte) (Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pipeline{}, fmt.Errorf("pipelineconfig: parse: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

// Validate checks that the pipeline declares exactly the structure the core
// engine's Manifest.dimensions resolution expects: at least one plugin of
// kind "embedder" with a non-negative integer dimensions field.
func (p Pipeline) Validate() error {
	found := false
	for _, plugin := range p.Plugins {
		if plugin.Kind != "embedder" {
			continue
		}
		found = true
		if plugin.Dimensions < 0 {
			return fmt.Errorf("pipelineconfig: embedder plugin %q has negative dimensions", plugin.Name)
		}
	}
	if !found {
		return fmt.Errorf("pipelineconfig: pipeline must declare at least one embedder plugin")
	}
	return nil
}

// Manifest compiles the pipeline into the canonical JSON vpack.Manifest
// that Build expects, re-encoding the YAML-sourced plugin list as the
// dynamic JSON value tree the core engine interprets.
func (p Pipeline) Manifest() (vpack.Manifest, error) {
	plugins := make([]any, len(p.Plugins))
	for i, plugin := range p.Plugins {
		entry := map[string]any{
			"kind": plugin.Kind,
			"name": plugin.Name,
		}
		if plugin.Kind == "embedder" {
			entry["dimensions"] = float64(plugin.Dimensions)
		}
		for k, v := range plugin.Config {
			entry[k] = v
		}
		plugins[i] = entry
	}

	root := map[string]any{
		"version": float64(p.Version),
		"name":    p.Name,
		"plugins": plugins,
	}
	for k, v := range p.Extra {
		root[k] = v
	}

	raw, err := vpack.NewManifest(root).JSON()
	if err != nil {
		return vpack.Manifest{}, vpkerr.Wrap(vpkerr.CodeSerializeFailed, "failed to encode pipeline manifest", err)
	}
	return vpack.DecodeManifest(raw)
}
