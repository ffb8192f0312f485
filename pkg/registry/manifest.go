// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

// Manifest declares which agents a worker process hosts and for which
// tenants. Behaviour comes from code; the manifest only selects and scopes it.
type Manifest struct {
	Agents []AgentSpec `yaml:"agents"`
}

// AgentSpec is one manifest entry.
type AgentSpec struct {
	Name     string   `yaml:"name"`
	TenantID string   `yaml:"tenant_id"`
	Scoping  string   `yaml:"scoping"`
	Tasks    bool     `yaml:"tasks"`
	Disabled []string `yaml:"disabled_workflows,omitempty"`
	// Workflows lists the workflow names of an agent hosted elsewhere. Only
	// processes that address the agent without running it read this.
	Workflows []string `yaml:"workflows,omitempty"`
}

// RemoteRegistration declares the entry as an addressable agent whose
// workflows run in another process.
func (s AgentSpec) RemoteRegistration() (Registration, error) {
	id, err := s.Identity()
	if err != nil {
		return Registration{}, err
	}
	return Registration{
		Identity: id,
		Workflows: lo.Map(s.Workflows, func(name string, _ int) WorkflowDefinition {
			return WorkflowDefinition{Name: name, Kind: Remote{}}
		}),
	}, nil
}

// Identity converts the entry to an agent identity.
func (s AgentSpec) Identity() (naming.AgentIdentity, error) {
	mode, err := naming.ParseScopingMode(s.Scoping)
	if err != nil {
		return naming.AgentIdentity{}, err
	}
	id := naming.AgentIdentity{Name: s.Name, TenantID: s.TenantID, Scoping: mode}
	if mode == naming.SystemScoped {
		id.TenantID = ""
	}
	if err := id.Validate(); err != nil {
		return naming.AgentIdentity{}, err
	}
	return id, nil
}

// ParseManifest decodes a YAML manifest and validates every entry.
func ParseManifest(data []byte, defaultTenant string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse agent manifest: %w", err)
	}
	for i := range m.Agents {
		if m.Agents[i].TenantID == "" {
			m.Agents[i].TenantID = defaultTenant
		}
		if _, err := m.Agents[i].Identity(); err != nil {
			return nil, fmt.Errorf("agent manifest entry %d: %w", i, err)
		}
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path, defaultTenant string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent manifest %s: %w", path, err)
	}
	return ParseManifest(data, defaultTenant)
}
