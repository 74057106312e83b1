package snapshot

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

// ManifestFile sits next to the table dumps. It is informational; imports
// do not depend on it.
const ManifestFile = "manifest.yaml"

// ManifestVersion is the current dump layout version.
const ManifestVersion = 1

// Manifest describes an exported dump.
type Manifest struct {
	Version     int       `yaml:"version"`
	Application string    `yaml:"application"`
	ExportedAt  time.Time `yaml:"exported_at"`
	OperationID string    `yaml:"operation_id"`
	Database    string    `yaml:"database"`
	Counts      db.Counts `yaml:"counts"`
}

// Encode renders the manifest as YAML.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
