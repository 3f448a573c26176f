package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/INLOpen/nexuslog/checkpoint"
	"github.com/INLOpen/nexuslog/core"
)

// NewTable creates an empty table directory with its _delta_log and returns
// the table root and the log directory.
func NewTable(t *testing.T) (root, logDir string) {
	t.Helper()
	root = t.TempDir()
	logDir = filepath.Join(root, "_delta_log")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		t.Fatalf("failed to create log directory %s: %v", logDir, err)
	}
	return root, logDir
}

// WriteCommit writes actions as the commit file of version.
func WriteCommit(t *testing.T, logDir string, version int64, actions ...core.Action) {
	t.Helper()
	var sb strings.Builder
	for _, a := range actions {
		data, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("failed to encode action for commit %d: %v", version, err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	WriteRawCommit(t, logDir, version, sb.String())
}

// WriteRawCommit writes content verbatim as the commit file of version.
func WriteRawCommit(t *testing.T, logDir string, version int64, content string) {
	t.Helper()
	path := filepath.Join(logDir, fmt.Sprintf("%020d.json", version))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write commit %s: %v", path, err)
	}
}

// WriteCheckpoint writes a checkpoint of version and points _last_checkpoint at it.
func WriteCheckpoint(t *testing.T, logDir string, version int64, ct core.CompressionType, actions ...core.Action) {
	t.Helper()
	if err := checkpoint.Write(logDir, version, actions, ct); err != nil {
		t.Fatalf("failed to write checkpoint %d: %v", version, err)
	}
	if err := checkpoint.WriteLastCheckpoint(logDir, checkpoint.LastCheckpoint{Version: version, Size: int64(len(actions))}); err != nil {
		t.Fatalf("failed to write last checkpoint hint %d: %v", version, err)
	}
}

// RemoveCommit deletes the commit file of version, as log cleanup would.
func RemoveCommit(t *testing.T, logDir string, version int64) {
	t.Helper()
	path := filepath.Join(logDir, fmt.Sprintf("%020d.json", version))
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove commit %s: %v", path, err)
	}
}

// Add builds a minimal valid add action.
func Add(path string, size int64) core.Action {
	return core.Action{Add: &core.Add{Path: path, Size: size, ModificationTime: 1, DataChange: true}}
}

// AddWithStats builds an add action carrying statistics JSON.
func AddWithStats(path string, size int64, stats string) core.Action {
	a := Add(path, size)
	a.Add.Stats = stats
	return a
}

// Remove builds a minimal valid remove action.
func Remove(path string) core.Action {
	return core.Action{Remove: &core.Remove{Path: path, DataChange: true}}
}
