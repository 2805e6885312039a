// Package workers loads external worker definitions from YAML manifests
// and registers them with the task delegator.
package workers

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/kestrel-ai/noesis/internal/delegate"
	"github.com/kestrel-ai/noesis/pkg/models"
)

// manifest is the on-disk shape of a worker manifest file.
type manifest struct {
	Workers []manifestWorker `yaml:"workers"`
}

// manifestWorker is one worker entry in a manifest.
type manifestWorker struct {
	ID           string   `yaml:"id"`
	Capabilities []string `yaml:"capabilities"`
	Status       string   `yaml:"status"`
}

// LoadManifest reads a YAML worker manifest and returns the workers it
// declares. Entries without an ID or with an unknown status are rejected;
// status defaults to idle when omitted.
func LoadManifest(path string) ([]*models.Worker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading worker manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing worker manifest %s: %w", path, err)
	}

	workers := make([]*models.Worker, 0, len(m.Workers))
	for i, entry := range m.Workers {
		if entry.ID == "" {
			return nil, fmt.Errorf("worker manifest %s: entry %d has no id", path, i)
		}
		status := models.WorkerStatusIdle
		if entry.Status != "" {
			status = models.WorkerStatus(entry.Status)
			if !status.Valid() {
				return nil, fmt.Errorf("worker manifest %s: worker %s has unknown status %q", path, entry.ID, entry.Status)
			}
		}

		caps := make(map[string]bool, len(entry.Capabilities))
		for _, c := range entry.Capabilities {
			caps[c] = true
		}
		workers = append(workers, &models.Worker{
			ID:           entry.ID,
			Capabilities: caps,
			Status:       status,
		})
	}
	return workers, nil
}

// RegisterFromManifest loads a manifest and registers every worker with the
// delegator. Returns the number of workers registered.
func RegisterFromManifest(path string, d *delegate.Delegator) (int, error) {
	workers, err := LoadManifest(path)
	if err != nil {
		return 0, err
	}
	for _, w := range workers {
		d.RegisterWorker(w)
	}
	return len(workers), nil
}
