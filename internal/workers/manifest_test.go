package workers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kestrel-ai/noesis/internal/delegate"
	"github.com/kestrel-ai/noesis/pkg/models"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workers.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `workers:
  - id: indexer-1
    capabilities:
      - search
      - index
  - id: runner-1
    capabilities:
      - code
    status: offline
`)

	workers, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(workers) != 2 {
		t.Fatalf("loaded %d workers, want 2", len(workers))
	}

	first := workers[0]
	if first.ID != "indexer-1" {
		t.Errorf("first worker ID = %q", first.ID)
	}
	if first.Status != models.WorkerStatusIdle {
		t.Errorf("omitted status = %s, want idle default", first.Status)
	}
	if !first.HasCapability("search") || !first.HasCapability("index") {
		t.Error("first worker missing capabilities")
	}

	if workers[1].Status != models.WorkerStatusOffline {
		t.Errorf("second worker status = %s, want offline", workers[1].Status)
	}
}

func TestLoadManifestRejectsMissingID(t *testing.T) {
	path := writeManifest(t, `workers:
  - capabilities: [search]
`)
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "no id") {
		t.Errorf("err = %v, want missing id error", err)
	}
}

func TestLoadManifestRejectsUnknownStatus(t *testing.T) {
	path := writeManifest(t, `workers:
  - id: w1
    status: sleeping
`)
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Errorf("err = %v, want unknown status error", err)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing manifest file")
	}
}

func TestRegisterFromManifest(t *testing.T) {
	path := writeManifest(t, `workers:
  - id: indexer-1
    capabilities: [search]
  - id: runner-1
    capabilities: [code]
`)

	d := delegate.New()
	n, err := RegisterFromManifest(path, d)
	if err != nil {
		t.Fatalf("RegisterFromManifest: %v", err)
	}
	if n != 2 {
		t.Errorf("registered %d workers, want 2", n)
	}
	if d.Worker("indexer-1") == nil || d.Worker("runner-1") == nil {
		t.Error("manifest workers not registered with delegator")
	}
}
