// Package metadata handles the reserved on-repo layout: per-file YAML
// sidecars and the per-repo link registry.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halvard/munin/internal/models"
)

const (
	// ReservedDir holds all sidecar and registry files inside a repo.
	ReservedDir = ".meta"

	// RegistryPath is the fixed location of a repo's link registry.
	RegistryPath = ReservedDir + "/links.yaml"

	sidecarExt = ".yaml"
)

// SidecarPath returns the sidecar location for a tracked content path.
func SidecarPath(contentPath string) string {
	return ReservedDir + "/" + contentPath + sidecarExt
}

// IsReserved reports whether path lives in the reserved subdirectory and is
// therefore not itself a content file.
func IsReserved(path string) bool {
	return path == ReservedDir || strings.HasPrefix(path, ReservedDir+"/")
}

// New returns fresh MetaData with both timestamps set to now.
func New(now time.Time, labels []string) models.MetaData {
	return models.MetaData{
		Labels:      labels,
		TimeCreated: now,
		TimeUpdated: now,
	}
}

// ParseMetaData decodes a sidecar document. A record without a creation
// timestamp is malformed: it would make every later update look older than
// the file itself.
func ParseMetaData(text string) (models.MetaData, error) {
	var md models.MetaData
	if err := yaml.Unmarshal([]byte(text), &md); err != nil {
		return models.MetaData{}, fmt.Errorf("metadata: %w", err)
	}
	if md.TimeCreated.IsZero() {
		return models.MetaData{}, fmt.Errorf("metadata: missing timeCreated")
	}
	return md, nil
}

// MarshalMetaData encodes a sidecar document.
func MarshalMetaData(md models.MetaData) (string, error) {
	out, err := yaml.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("metadata: marshal: %w", err)
	}
	return string(out), nil
}

// ParseRegistry decodes a repo's link registry.
func ParseRegistry(text string) ([]models.LinkRecord, error) {
	var records []models.LinkRecord
	if err := yaml.Unmarshal([]byte(text), &records); err != nil {
		return nil, fmt.Errorf("metadata: registry: %w", err)
	}
	return records, nil
}

// MarshalRegistry encodes link records. Callers pass records in a
// deterministic order so unchanged registries serialize byte-identically.
func MarshalRegistry(records []models.LinkRecord) (string, error) {
	if records == nil {
		records = []models.LinkRecord{}
	}
	out, err := yaml.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("metadata: marshal registry: %w", err)
	}
	return string(out), nil
}
