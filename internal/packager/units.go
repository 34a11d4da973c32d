// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/packwright/packwright/internal/archive"
	"github.com/packwright/packwright/internal/build"
	"github.com/packwright/packwright/internal/compiler"
	"github.com/packwright/packwright/internal/fsutil"
	"github.com/packwright/packwright/internal/manifest"
	"github.com/packwright/packwright/internal/pattern"
)

// PackageFunction produces the archive for one function and records it as
// the function's artifact. A preset artifact is only made absolute. A
// function that is not packaged individually reuses a preset service
// artifact.
func (p *Packager) PackageFunction(ctx context.Context, name string) (string, error) {
	fn, err := p.svc.Function(name)
	if err != nil {
		return "", wrapUnit(manifest.UnitFunction, name, err)
	}
	if fn.IsImage() {
		return "", nil
	}

	if preset := fn.Package.Artifact; preset != "" {
		abs := p.resolve(preset)
		if abs != preset {
			fn.Package.Artifact = abs
		}
		return abs, nil
	}
	if svcArtifact := p.svc.Package.Artifact; svcArtifact != "" && !fn.Package.Individually {
		abs := p.resolve(svcArtifact)
		fn.Package.Artifact = abs
		return abs, nil
	}

	files, err := p.FunctionFiles(name)
	if err != nil {
		return "", wrapUnit(manifest.UnitFunction, name, err)
	}
	artifact, err := p.archiver.Create(ctx, archive.Request{
		BaseDir: p.svc.Root,
		Files:   files,
		Name:    name + ".zip",
	})
	if err != nil {
		return "", wrapUnit(manifest.UnitFunction, name, err)
	}
	fn.Package.Artifact = artifact
	p.logger.Info("Packaged function", "function", name, "files", len(files), "artifact", artifact)
	return artifact, nil
}

// PackageLayer produces the archive for one layer. Paths inside the archive
// are relative to the layer directory, and layers nested inside it are left
// out.
func (p *Packager) PackageLayer(ctx context.Context, name string) (string, error) {
	l, err := p.svc.Layer(name)
	if err != nil {
		return "", wrapUnit(manifest.UnitLayer, name, err)
	}

	files, err := p.LayerFiles(name)
	if err != nil {
		return "", wrapUnit(manifest.UnitLayer, name, err)
	}
	artifact, err := p.archiver.Create(ctx, archive.Request{
		BaseDir: p.layerRoot(l),
		Files:   files,
		Name:    name + ".zip",
	})
	if err != nil {
		return "", wrapUnit(manifest.UnitLayer, name, err)
	}
	l.Package.Artifact = artifact
	p.logger.Info("Packaged layer", "layer", name, "files", len(files), "artifact", artifact)
	return artifact, nil
}

// PackageAll produces the aggregate service archive. It becomes the service
// artifact unless one is already set.
func (p *Packager) PackageAll(ctx context.Context) (string, error) {
	files, err := p.ServiceFiles()
	if err != nil {
		return "", wrapUnit(manifest.UnitService, p.svc.Name, err)
	}
	artifact, err := p.archiver.Create(ctx, archive.Request{
		BaseDir: p.svc.Root,
		Files:   files,
		Name:    p.svc.Name + ".zip",
	})
	if err != nil {
		return "", wrapUnit(manifest.UnitService, p.svc.Name, err)
	}
	if p.svc.Package.Artifact == "" {
		p.svc.Package.Artifact = artifact
	}
	p.logger.Info("Packaged service", "service", p.svc.Name, "files", len(files), "artifact", artifact)
	return artifact, nil
}

// BuildFunction compiles the project files a compiled function includes and
// records the build archive as its artifact. Functions on other runtimes are
// left untouched. Each project is built at most once per run, however many
// functions include it.
func (p *Packager) BuildFunction(ctx context.Context, name string) error {
	fn, err := p.svc.Function(name)
	if err != nil {
		return wrapUnit(manifest.UnitFunction, name, err)
	}

	rt := p.runtimeOf(fn)
	p.logger.Debug("Ready function", "function", name, "runtime", rt)
	if !rt.IsCompiled() {
		return nil
	}
	if len(fn.Package.Include) == 0 {
		return wrapUnit(manifest.UnitFunction, name, &ConfigurationError{
			Unit:   name,
			Reason: fmt.Sprintf("runtime %s needs the project file (e.g. .csproj) listed in package.include", rt),
		})
	}

	var artifact string
	for _, src := range p.Includes(fn.Package.Include) {
		if !p.cfg.IsProjectFile(src) {
			continue
		}
		built, err := p.registry.BuildOnce(ctx, build.SourceIdentity(src), p.buildProject(name, src))
		if err != nil {
			return wrapUnit(manifest.UnitFunction, name, err)
		}
		artifact = built
	}
	if artifact != "" {
		fn.Package.Artifact = artifact
	}
	return nil
}

// buildProject returns the build that compiles src into
// <build_dir>/<function> and archives the output as <function>.zip.
func (p *Packager) buildProject(function, src string) build.Func {
	return func(ctx context.Context) (string, error) {
		out := filepath.Join(p.cfg.BuildPath(p.svc.Root), function)
		p.logger.Debug("building", "project", src, "output", out)

		if err := fsutil.EnsureDir(out); err != nil {
			return "", err
		}
		if _, err := p.compiler.Compile(ctx, compiler.Request{
			ProjectFile: src,
			OutputDir:   out,
			WorkDir:     p.svc.Root,
		}); err != nil {
			return "", err
		}

		files, err := pattern.Resolve(out, nil, pattern.PatternSet{"**"})
		if err != nil {
			return "", fmt.Errorf("collect build output of %s: %w", src, err)
		}
		return p.archiver.Create(ctx, archive.Request{
			BaseDir: out,
			Files:   files,
			Name:    function + ".zip",
		})
	}
}
