package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"
)

// PluginSymbol is the exported symbol name every driver plugin must
// provide: a niladic function returning a Driver (spec §4.5 "Loading:
// drivers may also be provided as dynamically loaded modules").
const PluginSymbol = "NewDriver"

// LoadPlugins scans dir for files matching the audio_*.so convention
// (case-insensitive) and installs each one's Driver into reg. A plugin
// that fails to open or doesn't export PluginSymbol with the right
// signature is skipped with an error in the returned slice rather than
// aborting the whole scan.
//
// The standard library's plugin package is used here because none of
// this codebase's dependencies offer dynamic driver discovery.
func LoadPlugins(dir string, reg *Registry) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []error{fmt.Errorf("driver: plugin scan %s: %w", dir, err)}
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasPrefix(name, "audio_") || !strings.HasSuffix(name, ".so") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		p, err := plugin.Open(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("driver: open %s: %w", path, err))
			continue
		}

		sym, err := p.Lookup(PluginSymbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("driver: %s missing %s: %w", path, PluginSymbol, err))
			continue
		}

		ctor, ok := sym.(func() Driver)
		if !ok {
			errs = append(errs, fmt.Errorf("driver: %s: %s has the wrong signature", path, PluginSymbol))
			continue
		}

		if err := reg.Install(ctor()); err != nil {
			errs = append(errs, fmt.Errorf("driver: install %s: %w", path, err))
		}
	}
	return errs
}
