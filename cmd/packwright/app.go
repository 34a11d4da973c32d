// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/packwright/packwright/internal/buildqueue"
	"github.com/packwright/packwright/internal/compiler"
	"github.com/packwright/packwright/internal/config"
	"github.com/packwright/packwright/internal/fsutil"
	"github.com/packwright/packwright/internal/issue"
	"github.com/packwright/packwright/internal/manifest"
	"github.com/packwright/packwright/internal/packager"
	"github.com/packwright/packwright/internal/pattern"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives it and reaches configuration, output and the build queue
	// through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		// queue is shared by every packager the process creates so that
		// watch-mode runs never compile concurrently.
		queue *buildqueue.Queue
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// session is everything one packaging run needs.
	session struct {
		cfg      *config.Config
		svc      *manifest.Service
		logger   *log.Logger
		packager *packager.Packager
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		queue:  buildqueue.New(),
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// serviceDir returns the absolute service directory selected by --dir.
func (flags *rootFlagValues) serviceDir() (string, error) {
	dir := flags.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

func (flags *rootFlagValues) loadOptions(dir string) config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: flags.configPath, BaseDir: dir}
}

// loadConfig loads the configuration and applies the color mode it selects.
func (app *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	dir, err := flags.serviceDir()
	if err != nil {
		return nil, err
	}
	cfg, err := app.Config.Load(ctx, flags.loadOptions(dir))
	if err != nil {
		return nil, err
	}
	switch cfg.UI.Color {
	case config.ColorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
	case config.ColorAlways:
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
	return cfg, nil
}

// newLogger returns the progress logger. Verbose output is enabled by the
// flag or the ui.verbose setting.
func (app *App) newLogger(cfg *config.Config, flags *rootFlagValues) *log.Logger {
	logger := log.NewWithOptions(app.stderr, log.Options{Prefix: config.AppName})
	if flags.verbose || cfg.UI.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	switch cfg.UI.Color {
	case config.ColorNever:
		logger.SetColorProfile(termenv.Ascii)
	case config.ColorAlways:
		logger.SetColorProfile(termenv.TrueColor)
	}
	return logger
}

// loadService reads the manifest from the service directory.
func loadService(flags *rootFlagValues) (*manifest.Service, error) {
	dir, err := flags.serviceDir()
	if err != nil {
		return nil, err
	}
	path, err := manifest.Discover(dir)
	if err != nil {
		return nil, err
	}
	return manifest.Load(path)
}

// newSession loads configuration and manifest and creates the packager.
func (app *App) newSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := app.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	return app.reload(cfg, flags)
}

// reload re-reads the manifest with an already loaded configuration.
func (app *App) reload(cfg *config.Config, flags *rootFlagValues) (*session, error) {
	svc, err := loadService(flags)
	if err != nil {
		return nil, err
	}
	logger := app.newLogger(cfg, flags)
	p := packager.New(svc, cfg, packager.Options{
		Compiler: compiler.NewCommand(cfg.Build.Command, cfg.Build.Configuration, logger),
		Logger:   logger,
		Queue:    app.queue,
	})
	return &session{cfg: cfg, svc: svc, logger: logger, packager: p}, nil
}

// issueFor picks the catalog page that explains err, or 0 when none does.
func issueFor(err error) issue.Id {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.IssueID != 0 {
		return ae.IssueID
	}
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		return issue.ManifestNotFoundId
	case errors.Is(err, manifest.ErrInvalid):
		return issue.ManifestInvalidId
	case errors.Is(err, manifest.ErrUnknownUnit):
		return issue.UnknownUnitId
	case errors.Is(err, packager.ErrConfiguration):
		return issue.CompiledWithoutIncludeId
	case errors.Is(err, compiler.ErrBuildFailed):
		return issue.BuildFailedId
	case errors.Is(err, pattern.ErrNoMatch):
		return issue.NoMatchingFilesId
	case errors.Is(err, fsutil.ErrFilesystem):
		return issue.FilesystemId
	default:
		return 0
	}
}

// explain writes the guidance for err to stderr: the suggestions of an
// actionable error and the matching catalog page.
func (app *App) explain(err error, verbose bool) {
	if err == nil {
		return
	}

	for _, ae := range actionableErrors(err) {
		fmt.Fprintln(app.stderr, ErrorStyle.Render("Error: ")+ae.Format(verbose))
	}

	id := issueFor(err)
	if id == 0 {
		return
	}
	page := issue.Get(id)
	if page == nil {
		return
	}
	style := "dark"
	if lipgloss.ColorProfile() == termenv.Ascii {
		style = "notty"
	}
	rendered, renderErr := page.Render(style)
	if renderErr != nil {
		fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+renderErr.Error())
		return
	}
	fmt.Fprint(app.stderr, rendered)
}

// actionableErrors collects the actionable errors of err, one per branch of
// a joined error.
func actionableErrors(err error) []*issue.ActionableError {
	if ae, ok := err.(*issue.ActionableError); ok {
		return []*issue.ActionableError{ae}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*issue.ActionableError
		for _, inner := range joined.Unwrap() {
			out = append(out, actionableErrors(inner)...)
		}
		return out
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return []*issue.ActionableError{ae}
	}
	return nil
}

// run wraps a command body so that failures are explained before cobra
// reports them and carry their exit code.
func (app *App) run(flags *rootFlagValues, body func() error) error {
	err := body()
	if err == nil {
		return nil
	}
	app.explain(err, flags.verbose)
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
