package persona

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileIDPrefix prefixes ids of personas loaded from definition files.
const FileIDPrefix = "file_"

// LoadDir reads every *.toml persona definition in dir. A missing directory
// yields an empty set. Invalid files are reported together in the error
// while the valid ones are still returned.
func LoadDir(dir string) (map[string]Persona, error) {
	out := map[string]Persona{}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("persona: read dir: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isDefinitionFile(e.Name()) {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[p.ID] = p
	}
	return out, errors.Join(errs...)
}

// LoadFile parses one persona definition file.
func LoadFile(path string) (Persona, error) {
	var def Definition
	if _, err := toml.DecodeFile(path, &def); err != nil {
		return Persona{}, fmt.Errorf("persona: %s: %w", filepath.Base(path), err)
	}
	if err := def.Validate(); err != nil {
		return Persona{}, fmt.Errorf("persona: %s: %w", filepath.Base(path), err)
	}

	modTime := time.Time{}
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime().UTC()
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p := def.build(FileIDPrefix+base, modTime)
	return p, nil
}

func isDefinitionFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".toml") && !strings.HasPrefix(name, ".")
}
