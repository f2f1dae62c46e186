// Package sourcefile reads and writes the per-directory .frg/source.yaml
// marker recording a working directory's forge kind and remote id. It
// exists so source resolution can walk up from a subdirectory to the
// linked root. Loading is defensive: a missing or unparseable file
// yields a zero value rather than an error that blocks a read command.
package sourcefile

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/forgesync/frg/internal/types"
)

// DirName is the marker directory created at a linked source's root.
const DirName = ".frg"

const fileName = "source.yaml"

// SourceFile is the on-disk shape.
type SourceFile struct {
	ForgeKind types.ForgeKind `yaml:"forge_kind"`
	RemoteID  string          `yaml:"remote_id"`
}

// Write records the marker under root, creating .frg if needed.
func Write(root string, sf SourceFile) error {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("marshal source file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		return fmt.Errorf("write source file: %w", err)
	}
	return nil
}

// Remove deletes the marker directory under root. Missing is fine.
func Remove(root string) error {
	err := os.RemoveAll(filepath.Join(root, DirName))
	if err != nil {
		return fmt.Errorf("remove source marker: %w", err)
	}
	return nil
}

// Load reads the marker at exactly root. A missing or unparseable file
// yields a zero value and ok=false, never an error.
func Load(root string) (SourceFile, bool) {
	data, err := os.ReadFile(filepath.Join(root, DirName, fileName))
	if err != nil {
		return SourceFile{}, false
	}
	var sf SourceFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return SourceFile{}, false
	}
	if sf.RemoteID == "" {
		return SourceFile{}, false
	}
	return sf, true
}

// FindRoot walks from dir toward the filesystem root looking for a
// directory containing the marker, returning that directory.
func FindRoot(dir string) (string, bool) {
	dir = filepath.Clean(dir)
	for {
		if _, ok := Load(dir); ok {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
