// Package properties loads the registry of GA4 properties this instance
// knows about from a YAML file. Entries pair a GA4 property with its
// optional BigQuery export and a service-account key on disk, so the
// dashboard can run jobs without re-uploading credentials each time.
package properties

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"caudal/internal/gauth"
)

// Property is one configured GA4 property.
type Property struct {
	ID                    string `yaml:"id" json:"id"`
	Name                  string `yaml:"name" json:"name"`
	Domain                string `yaml:"domain,omitempty" json:"domain,omitempty"`
	Enabled               bool   `yaml:"enabled" json:"enabled"`
	BigQueryProjectID     string `yaml:"bigQueryProjectId,omitempty" json:"bigQueryProjectId,omitempty"`
	BigQueryDataset       string `yaml:"bigQueryDataset,omitempty" json:"bigQueryDataset,omitempty"`
	ServiceAccountKeyFile string `yaml:"serviceAccountKeyFile,omitempty" json:"-"`
}

// HasBigQueryExport reports whether the property has a BigQuery events
// export configured.
func (p Property) HasBigQueryExport() bool {
	return p.BigQueryProjectID != "" && p.BigQueryDataset != ""
}

// LoadKey reads and parses the property's service-account key file.
func (p Property) LoadKey() (*gauth.Key, error) {
	if p.ServiceAccountKeyFile == "" {
		return nil, fmt.Errorf("property %s has no service account key file configured", p.ID)
	}
	raw, err := os.ReadFile(p.ServiceAccountKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file for property %s: %w", p.ID, err)
	}
	return gauth.ParseKey(raw)
}

type registryFile struct {
	Properties []Property `yaml:"properties"`
}

// Registry is the loaded set of properties, keyed by id.
type Registry struct {
	ordered []Property
	byID    map[string]Property
}

// Load reads the registry from path. A missing file yields an empty
// registry, not an error: upload-key flows work without any file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newRegistry(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read properties file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a registry from raw YAML.
func Parse(raw []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse properties file: %w", err)
	}
	for i, p := range file.Properties {
		if p.ID == "" {
			return nil, fmt.Errorf("property entry %d is missing an id", i)
		}
	}
	return newRegistry(file.Properties), nil
}

func newRegistry(props []Property) *Registry {
	byID := make(map[string]Property, len(props))
	for _, p := range props {
		byID[p.ID] = p
	}
	return &Registry{ordered: props, byID: byID}
}

// All returns the enabled properties in file order.
func (r *Registry) All() []Property {
	enabled := make([]Property, 0, len(r.ordered))
	for _, p := range r.ordered {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// Get returns the property with the given id.
func (r *Registry) Get(id string) (Property, bool) {
	p, ok := r.byID[id]
	return p, ok
}
