// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/packwright/packwright/internal/archive"
	"github.com/packwright/packwright/internal/build"
	"github.com/packwright/packwright/internal/buildqueue"
	"github.com/packwright/packwright/internal/compiler"
	"github.com/packwright/packwright/internal/config"
	"github.com/packwright/packwright/internal/manifest"
)

type (
	// Options carries the packager's collaborators. Zero fields get
	// defaults derived from the configuration.
	Options struct {
		Archiver archive.Archiver
		Compiler compiler.Compiler
		Logger   *log.Logger
		// Queue serializes compiler invocations. Share one queue between
		// packagers that may build concurrently.
		Queue *buildqueue.Queue
	}

	// Packager packages one service.
	Packager struct {
		svc      *manifest.Service
		cfg      *config.Config
		archiver archive.Archiver
		compiler compiler.Compiler
		logger   *log.Logger
		registry *build.Registry
	}
)

// New creates a Packager for svc.
func New(svc *manifest.Service, cfg *config.Config, opts Options) *Packager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	svc.Normalize()

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	arch := opts.Archiver
	if arch == nil {
		arch = archive.NewZipArchiver(cfg.OutputPath(svc.Root))
	}
	comp := opts.Compiler
	if comp == nil {
		comp = compiler.NewCommand(cfg.Build.Command, cfg.Build.Configuration, logger)
	}
	queue := opts.Queue
	if queue == nil {
		queue = buildqueue.New()
	}
	return &Packager{
		svc:      svc,
		cfg:      cfg,
		archiver: arch,
		compiler: comp,
		logger:   logger,
		registry: build.NewRegistry(queue),
	}
}

// Service returns the service being packaged.
func (p *Packager) Service() *manifest.Service { return p.svc }

// Builds reports how many compilations ran in the current run.
func (p *Packager) Builds() int { return p.registry.Builds() }

// PackageService packages every function and layer of the service, then the
// aggregate service archive when a function needs it. Unit failures are
// collected; the returned error joins all of them.
func (p *Packager) PackageService(ctx context.Context) error {
	p.logger.Info("Packaging service...", "service", p.svc.Name)
	p.registry.Reset()

	var needAggregate atomic.Bool
	units := pool.New().WithContext(ctx)

	for _, name := range p.svc.AllFunctions() {
		fn := p.svc.Functions[name]
		units.Go(func(ctx context.Context) error {
			aggregate, err := p.packageFunctionUnit(ctx, fn)
			if aggregate {
				needAggregate.Store(true)
			}
			return err
		})
	}

	for _, name := range p.svc.AllLayers() {
		if p.svc.Layers[name].Package.Artifact != "" {
			continue
		}
		units.Go(func(ctx context.Context) error {
			_, err := p.PackageLayer(ctx, name)
			return err
		})
	}

	err := units.Wait()
	if needAggregate.Load() && p.svc.Package.Artifact == "" {
		if _, aggErr := p.PackageAll(ctx); aggErr != nil {
			err = errors.Join(err, aggErr)
		}
	}
	return err
}

// packageFunctionUnit runs one function through the per-run decision table.
// It reports whether the function belongs in the aggregate archive instead.
func (p *Packager) packageFunctionUnit(ctx context.Context, fn *manifest.Function) (aggregate bool, err error) {
	switch {
	case fn.IsImage():
		return false, nil
	case fn.Package.Disable:
		p.logger.Info("Packaging disabled for function", "function", fn.Name)
		return false, nil
	case fn.Package.Artifact != "":
		return false, nil
	case p.runtimeOf(fn).IsCompiled():
		if err := p.BuildFunction(ctx, fn.Name); err != nil {
			return false, err
		}
		_, err := p.PackageFunction(ctx, fn.Name)
		return false, err
	case fn.Package.Individually || p.svc.Package.Individually:
		_, err := p.PackageFunction(ctx, fn.Name)
		return false, err
	default:
		return true, nil
	}
}

// PackageSelected packages one function outside a full service run. It
// follows the same decision table as PackageService: image functions,
// disabled functions and preset artifacts are left alone, and compiled
// functions are built first. A function that would otherwise share the
// service archive gets its own archive. The returned artifact is empty when
// nothing was packaged.
func (p *Packager) PackageSelected(ctx context.Context, name string) (string, error) {
	fn, err := p.svc.Function(name)
	if err != nil {
		return "", wrapUnit(manifest.UnitFunction, name, err)
	}
	aggregate, err := p.packageFunctionUnit(ctx, fn)
	if err != nil {
		return "", err
	}
	if aggregate {
		return p.PackageFunction(ctx, name)
	}
	return fn.Package.Artifact, nil
}

// runtimeOf applies the fallback chain: function, provider, configured default.
func (p *Packager) runtimeOf(fn *manifest.Function) manifest.Runtime {
	switch {
	case fn.Runtime != "":
		return fn.Runtime
	case p.svc.Provider.Runtime != "":
		return p.svc.Provider.Runtime
	default:
		return manifest.Runtime(p.cfg.DefaultRuntime)
	}
}
