package replication

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rflorenc/arcfg/internal/models"
)

// Snapshot is a saved copy of one appliance collection.
type Snapshot struct {
	RunID   string            `json:"run_id"`
	Host    string            `json:"host"`
	Port    int               `json:"port,omitempty"`
	Object  string            `json:"object"`
	BodyKey string            `json:"body_key"`
	TakenAt time.Time         `json:"taken_at"`
	Items   models.Collection `json:"items"`
}

// SnapshotPath returns <dir>/<host>-<object>-<runid>.json.
func SnapshotPath(dir, host, object, runID string) string {
	safeHost := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(host)
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s.json", safeHost, object, runID))
}

// WriteSnapshot writes s as indented JSON, readable only by the owner.
func WriteSnapshot(path string, s *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot. The object type must
// still be a supported one.
func ReadSnapshot(path string) (*Snapshot, models.ObjectType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.ObjectType{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, models.ObjectType{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	ot, err := models.LookupObjectType(s.Object)
	if err != nil {
		return nil, models.ObjectType{}, fmt.Errorf("snapshot %s: %w", path, err)
	}
	if s.Items == nil {
		s.Items = models.Collection{}
	}
	return &s, ot, nil
}
