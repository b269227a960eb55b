package schema

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Load reads a schema from path, choosing the format by extension:
// .yaml and .yml are YAML files, .cue is a single CUE file, and
// anything else is a CUE package directory.
//
// YAML and single CUE files are read through fs. CUE directories go
// through the CUE loader and are always read from the OS filesystem.
func Load(fs afero.Fs, path string) (*Static, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(fs, path)
	case ".cue":
		src, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		return CompileCUE(path, string(src))
	default:
		return LoadCUE(path)
	}
}
