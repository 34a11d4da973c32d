// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"path/filepath"
	"strings"

	"github.com/packwright/packwright/internal/manifest"
	"github.com/packwright/packwright/internal/pattern"
)

// pluginsDir is where locally installed plugins live. It never ships.
const pluginsDir = ".packwright_plugins"

// DefaultExcludes returns the patterns excluded from every archive: VCS and
// OS metadata, package-manager logs, the tool's own output and build
// directories, and installed plugins.
func (p *Packager) DefaultExcludes() []string {
	return []string{
		".git/**",
		".gitignore",
		".DS_Store",
		"npm-debug.log",
		"yarn-*.log",
		dirGlob(p.cfg.OutputDir),
		dirGlob(pluginsDir),
		dirGlob(p.cfg.BuildDir),
	}
}

// Excludes returns the exclude list for a unit, in precedence order and
// without duplicates: the defaults, the manifest file, the local plugin path,
// the service excludes, every layer path when withLayers is set, dotenv
// files when the service uses them, and finally extra.
func (p *Packager) Excludes(extra []string, withLayers bool) []string {
	var manifestFile, plugins, layers, dotenv []string
	if p.svc.ConfigPath != "" {
		manifestFile = []string{filepath.Base(p.svc.ConfigPath)}
	}
	if lp := p.svc.Plugins.LocalPath; lp != "" {
		plugins = []string{filepath.ToSlash(lp)}
	}
	if withLayers {
		for _, name := range p.svc.AllLayers() {
			layers = append(layers, dirGlob(p.svc.Layers[name].Path))
		}
	}
	if p.svc.UseDotenv {
		dotenv = []string{".env*"}
	}
	return union(p.DefaultExcludes(), manifestFile, plugins, p.svc.Package.Exclude, layers, dotenv, extra)
}

// Includes returns the service includes followed by extra, without
// duplicates.
func (p *Packager) Includes(extra []string) []string {
	return union(p.svc.Package.Include, extra)
}

// FunctionFiles resolves the files a function archive would contain,
// relative to the service root.
func (p *Packager) FunctionFiles(name string) ([]string, error) {
	fn, err := p.svc.Function(name)
	if err != nil {
		return nil, err
	}
	return pattern.Resolve(p.svc.Root, p.Excludes(fn.Package.Exclude, true), p.Includes(fn.Package.Include))
}

// LayerFiles resolves the files a layer archive would contain, relative to
// the layer directory.
func (p *Packager) LayerFiles(name string) ([]string, error) {
	l, err := p.svc.Layer(name)
	if err != nil {
		return nil, err
	}
	exclude := union(p.Excludes(l.Package.Exclude, false), p.nestedLayerExcludes(l))
	return pattern.Resolve(p.layerRoot(l), exclude, p.Includes(l.Package.Include))
}

// ServiceFiles resolves the files of the aggregate service archive.
func (p *Packager) ServiceFiles() ([]string, error) {
	return pattern.Resolve(p.svc.Root, p.Excludes(nil, true), p.Includes(nil))
}

// nestedLayerExcludes returns "<rel>/**" for every other layer located
// inside l, relative to l's directory.
func (p *Packager) nestedLayerExcludes(l *manifest.Layer) []string {
	root := p.layerRoot(l)
	var out []string
	for _, name := range p.svc.AllLayers() {
		other := p.svc.Layers[name]
		if other == l {
			continue
		}
		rel, err := filepath.Rel(root, p.layerRoot(other))
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, dirGlob(rel))
	}
	return out
}

func (p *Packager) layerRoot(l *manifest.Layer) string {
	return p.resolve(l.Path)
}

// resolve makes a manifest-relative path absolute.
func (p *Packager) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.svc.Root, path)
}

// dirGlob turns a directory path into the pattern matching everything below
// it.
func dirGlob(dir string) string {
	dir = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(dir)), "/")
	return dir + "/**"
}

// union concatenates lists, keeping the first occurrence of each entry.
func union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
