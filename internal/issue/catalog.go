// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog page.
type Id int

const (
	// ManifestNotFoundId: no packwright.cue or packwright.toml in the directory.
	ManifestNotFoundId Id = iota + 1
	// ManifestInvalidId: the manifest failed to parse or validate.
	ManifestInvalidId
	// NoMatchingFilesId: include/exclude patterns selected nothing.
	NoMatchingFilesId
	// BuildFailedId: the .NET toolchain returned an error.
	BuildFailedId
	// CompiledWithoutIncludeId: a compiled function names no project file.
	CompiledWithoutIncludeId
	// UnknownUnitId: a --function or --layer flag names an undeclared unit.
	UnknownUnitId
	// ConfigLoadFailedId: the configuration file is invalid.
	ConfigLoadFailedId
	// FilesystemId: an output directory could not be created.
	FilesystemId
)

// Issue is one catalog page of markdown guidance.
type Issue struct {
	id       Id
	markdown string
}

var (
	render = glamour.Render

	catalog = map[Id]*Issue{
		ManifestNotFoundId: {
			id: ManifestNotFoundId,
			markdown: `
# No service manifest found

packwright looks for a manifest in the service directory, in this order:

1. ` + "`packwright.cue`" + `
2. ` + "`packwright.toml`" + `

## Things you can try
- Run the command from the service directory, or pass ` + "`--dir`" + `.
- Create a minimal manifest:
~~~cue
service: "hello"
provider: runtime: "nodejs20.x"
functions: hello: handler: "handler.hello"
~~~`,
		},
		ManifestInvalidId: {
			id: ManifestInvalidId,
			markdown: `
# The service manifest is invalid

Every function needs a ` + "`handler`" + ` or an ` + "`image`" + `, and every layer needs a ` + "`path`" + `.
Unknown fields are rejected.

## Things you can try
- Read the field path in the error message: it points at the offending value.
- Compare field names with the manifest reference; they are case sensitive.`,
		},
		NoMatchingFilesId: {
			id: NoMatchingFilesId,
			markdown: `
# No file matches the include / exclude patterns

Exclude patterns are applied first and include patterns last, in the order
they are written. A later pattern overrides an earlier one.

## Things you can try
- Preview the selection:
~~~
$ packwright files --function <name>
~~~
- Look for a broad exclude such as ` + "`**`" + ` that is not re-included.
- Remember that ` + "`*`" + ` does not cross directories; use ` + "`**`" + `.`,
		},
		BuildFailedId: {
			id: BuildFailedId,
			markdown: `
# The build failed

The toolchain output above shows the compiler diagnostics.

## Things you can try
- Run ` + "`dotnet publish`" + ` on the project yourself to reproduce the failure.
- Check that the .NET SDK is installed and on your PATH.
- Override the command line with ` + "`build.command`" + ` in the configuration.`,
		},
		CompiledWithoutIncludeId: {
			id: CompiledWithoutIncludeId,
			markdown: `
# A compiled function has nothing to build

Functions on a ` + "`dotnet`" + ` runtime are built from the project files listed in
their ` + "`package.include`" + `.

## Things you can try
~~~cue
functions: api: {
	handler: "Api::Api.Function::Handle"
	runtime: "dotnet8"
	package: include: ["src/Api/Api.csproj"]
}
~~~`,
		},
		UnknownUnitId: {
			id: UnknownUnitId,
			markdown: `
# Unknown function or layer

The name given on the command line is not declared in the manifest.

## Things you can try
- List what the manifest declares:
~~~
$ packwright files
~~~`,
		},
		ConfigLoadFailedId: {
			id: ConfigLoadFailedId,
			markdown: `
# The configuration could not be loaded

## Things you can try
- Print the path being read:
~~~
$ packwright config path
~~~
- Regenerate a default file with ` + "`packwright config init --force`" + `.`,
		},
		FilesystemId: {
			id: FilesystemId,
			markdown: `
# An output directory could not be created

## Things you can try
- Check permissions on the service directory.
- Make sure no regular file has the name of ` + "`output_dir`" + ` or ` + "`build_dir`" + `.`,
		},
	}
)

// Id returns the issue identifier.
func (i *Issue) Id() Id { return i.id }

// Title returns the page's top-level heading.
func (i *Issue) Title() string {
	for _, line := range strings.Split(i.markdown, "\n") {
		if title, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return ""
}

// Markdown returns the raw page.
func (i *Issue) Markdown() string { return i.markdown }

// Render renders the page for a terminal using a glamour style such as
// "dark", "light" or "notty".
func (i *Issue) Render(style string) (string, error) {
	return render(i.markdown, style)
}

// Get returns the page for id, or nil.
func Get(id Id) *Issue { return catalog[id] }

// Values returns every page, ordered by id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(catalog))
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog[id])
	}
	return out
}
