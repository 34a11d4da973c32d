// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/packwright/packwright/internal/issue"
	"github.com/packwright/packwright/internal/manifest"
	"github.com/packwright/packwright/internal/packager"
	"github.com/packwright/packwright/internal/watch"
)

// packageFlagValues holds the flags of `packwright package`.
type packageFlagValues struct {
	functions []string
	layers    []string
	watch     bool
}

func newPackageCommand(app *App, flags *rootFlagValues) *cobra.Command {
	pf := &packageFlagValues{}

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Package the service into deployable archives",
		Long: `Package every function and layer of the service.

Functions packaged individually and every layer get their own archive.
Remaining functions share the service archive. .NET functions are compiled
first; each project is built once per run.

Use --function and --layer (both repeatable) to package selected units
only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(flags, func() error {
				return runPackage(cmd.Context(), app, flags, pf)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&pf.functions, "function", "f", nil, "package this function (repeatable)")
	cmd.Flags().StringArrayVarP(&pf.layers, "layer", "l", nil, "package this layer (repeatable)")
	cmd.Flags().BoolVarP(&pf.watch, "watch", "w", false, "re-package whenever a source file changes")
	return cmd
}

func runPackage(ctx context.Context, app *App, flags *rootFlagValues, pf *packageFlagValues) error {
	sess, err := app.newSession(ctx, flags)
	if err != nil {
		return err
	}

	err = packageOnce(ctx, app, sess, pf)
	if !pf.watch {
		return err
	}
	if err != nil {
		app.explain(err, flags.verbose)
	}
	return watchService(ctx, app, sess, flags, pf)
}

// packageOnce runs one packaging pass and prints the produced artifacts.
// Selected units are packaged in order; a failing unit does not stop the
// others.
func packageOnce(ctx context.Context, app *App, sess *session, pf *packageFlagValues) error {
	p := sess.packager

	var err error
	if len(pf.functions) == 0 && len(pf.layers) == 0 {
		err = p.PackageService(ctx)
	} else {
		var errs []error
		for _, name := range pf.functions {
			if _, pkgErr := p.PackageSelected(ctx, name); pkgErr != nil {
				errs = append(errs, pkgErr)
			}
		}
		for _, name := range pf.layers {
			if _, pkgErr := p.PackageLayer(ctx, name); pkgErr != nil {
				errs = append(errs, pkgErr)
			}
		}
		err = errors.Join(errs...)
	}

	printArtifacts(app, sess.svc)
	return describeUnitErrors(err)
}

// describeUnitErrors turns every unit failure inside err into an actionable
// error. Joined failures stay joined.
func describeUnitErrors(err error) error {
	var ue *packager.UnitError
	switch e := err.(type) {
	case nil:
		return nil
	case *packager.UnitError:
		return issue.WrapWithOperation(e, "package")
	case interface{ Unwrap() []error }:
		var errs []error
		for _, inner := range e.Unwrap() {
			errs = append(errs, describeUnitErrors(inner))
		}
		return errors.Join(errs...)
	default:
		if errors.As(err, &ue) {
			return issue.WrapWithOperation(err, "package")
		}
		return err
	}
}

// watchService re-packages on every change until ctx is canceled. The
// manifest is re-read for each run so edits to it take effect.
func watchService(ctx context.Context, app *App, sess *session, flags *rootFlagValues, pf *packageFlagValues) error {
	cfg := sess.cfg
	root := sess.svc.Root

	w, err := watch.New(watch.Config{
		Root:     root,
		Ignore:   watchIgnores(root, cfg.OutputPath(root), cfg.BuildPath(root)),
		Debounce: cfg.Watch.Debounce,
		Logger:   sess.logger,
		OnChange: func(ctx context.Context, _ []string) error {
			next, err := app.reload(cfg, flags)
			if err != nil {
				app.explain(err, flags.verbose)
				return err
			}
			if err := packageOnce(ctx, app, next, pf); err != nil {
				app.explain(err, flags.verbose)
				return err
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	sess.logger.Info("Watching for changes", "dir", root)
	return w.Run(ctx)
}

// watchIgnores keeps packwright's own output from re-triggering a run.
func watchIgnores(root string, dirs ...string) []string {
	var out []string
	for _, dir := range dirs {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel)+"/**")
	}
	return out
}

// printArtifacts lists every artifact recorded on the service.
func printArtifacts(app *App, svc *manifest.Service) {
	show := func(kind manifest.UnitKind, name, artifact string) {
		if artifact == "" {
			return
		}
		if rel, err := filepath.Rel(svc.Root, artifact); err == nil {
			artifact = filepath.ToSlash(rel)
		}
		fmt.Fprintf(app.stdout, "%s %s %s %s\n",
			SuccessStyle.Render("✓"), SubtitleStyle.Render(string(kind)), CmdStyle.Render(name), artifact)
	}

	for _, name := range svc.AllFunctions() {
		show(manifest.UnitFunction, name, svc.Functions[name].Package.Artifact)
	}
	for _, name := range svc.AllLayers() {
		show(manifest.UnitLayer, name, svc.Layers[name].Package.Artifact)
	}
	show(manifest.UnitService, svc.Name, svc.Package.Artifact)
}
