// Package config loads glox's resource-limit settings from an optional
// project file, following flags > env vars > file > compiled-in defaults
// (SPEC_FULL.md §3.3). The env-var and flag layers are handled by
// mainer.Parser in internal/maincmd; this package only handles the file
// layer, grounded on funxy's funxy.yaml loader.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kristofer/glox/pkg/vm"
)

// FileName is the project config file glox looks for in the current
// directory, analogous to funxy.yaml / barn's equivalents.
const FileName = ".smogrc.yaml"

// File is the on-disk shape of FileName. Zero-value fields mean "not set",
// so Merge only overrides a vm.Config field the file actually specifies.
type File struct {
	MaxFrames  int `yaml:"max_frames,omitempty"`
	MaxStack   int `yaml:"max_stack,omitempty"`
	TraceDepth int `yaml:"trace_depth,omitempty"`
}

// Load reads FileName from dir if present. A missing file is not an
// error — it just means no file-layer overrides apply.
func Load(dir string) (File, error) {
	path := dir + string(os.PathSeparator) + FileName
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// Merge layers f over base, a vm.Config already populated from flags/env
// (mainer handles that layer before Merge is called), returning the final
// vm.Config to pass to vm.WithConfig.
func (f File) Merge(base vm.Config) vm.Config {
	if f.MaxFrames > 0 {
		base.MaxFrames = f.MaxFrames
	}
	if f.MaxStack > 0 {
		base.MaxStack = f.MaxStack
	}
	if f.TraceDepth > 0 {
		base.TraceDepth = f.TraceDepth
	}
	return base
}
