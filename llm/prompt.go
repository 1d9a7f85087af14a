// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// SampleAgentPrompt is the prompt answering decentralized identity questions.
const SampleAgentPrompt = "sample_agent"

//go:embed prompts/*.yaml
var builtinPrompts embed.FS

// ErrPromptNotFound is returned for unknown prompt names.
var ErrPromptNotFound = errors.New("prompt not found")

// Prompt is a named system prompt with its model settings.
type Prompt struct {
	Name        string   `yaml:"name"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	System      string   `yaml:"system"`

	tmpl *template.Template
}

// Render executes the system template against input.
func (p *Prompt) Render(input map[string]any) (string, error) {
	if p.tmpl == nil {
		return p.System, nil
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, input); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", p.Name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Registry holds prompts by name.
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]*Prompt
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{prompts: make(map[string]*Prompt)}
}

var (
	defaultRegistry     *Registry
	defaultRegistryErr  error
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry of the prompts shipped with the package.
func DefaultRegistry() (*Registry, error) {
	defaultRegistryOnce.Do(func() {
		r := NewRegistry()
		defaultRegistryErr = r.LoadFS(builtinPrompts, "prompts")
		defaultRegistry = r
	})
	return defaultRegistry, defaultRegistryErr
}

// LoadFS registers every .yaml file under dir of fsys. A prompt without a name
// takes the file name.
func (r *Registry) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read prompt dir %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("read prompt %s: %w", e.Name(), err)
		}
		p, err := ParsePrompt(data)
		if err != nil {
			return fmt.Errorf("prompt %s: %w", e.Name(), err)
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(e.Name(), ".yaml")
		}
		r.Register(p)
	}

	return nil
}

// ParsePrompt decodes a YAML prompt definition.
func ParsePrompt(data []byte) (*Prompt, error) {
	var p Prompt
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prompt: %w", err)
	}
	if strings.TrimSpace(p.System) == "" {
		return nil, fmt.Errorf("prompt has no system text")
	}
	tmpl, err := template.New(p.Name).Option("missingkey=zero").Parse(p.System)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	p.tmpl = tmpl
	return &p, nil
}

// Register adds p, replacing any prompt of the same name.
func (r *Registry) Register(p *Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[p.Name] = p
}

// Lookup returns the prompt called name.
func (r *Registry) Lookup(name string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, name)
	}
	return p, nil
}

// Names returns the registered prompt names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.prompts))
}
