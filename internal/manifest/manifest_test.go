// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/packwright/packwright/internal/testutil"
)

const cueManifest = `
service: "hello"
provider: runtime: "nodejs20.x"
package: {
	exclude: ["tmp/**"]
	individually: true
}
useDotenv: true
plugins: localPath: ".plugins"
functions: {
	hello: handler: "handler.hello"
	api: {
		handler: "Api::Api.Function::Handle"
		runtime: "dotnet8"
		package: include: ["src/Api/Api.csproj"]
	}
	worker: image: "example.com/worker:latest"
}
layers: common: path: "layers/common"
`

const tomlManifest = `
service = "hello"

[provider]
runtime = "nodejs20.x"

[package]
exclude = ["tmp/**"]

[functions.hello]
handler = "handler.hello"

[functions.api]
handler = "Api::Api.Function::Handle"
runtime = "dotnet8"

[functions.api.package]
include = ["src/Api/Api.csproj"]

[layers.common]
path = "layers/common"
`

func TestLoad_CUE(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{CUEFileName: cueManifest})

	svc, err := Load(filepath.Join(dir, CUEFileName))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if svc.Name != "hello" {
		t.Errorf("Name = %q, want hello", svc.Name)
	}
	if svc.Root != dir {
		t.Errorf("Root = %q, want %q", svc.Root, dir)
	}
	if svc.ConfigPath != filepath.Join(dir, CUEFileName) {
		t.Errorf("ConfigPath = %q", svc.ConfigPath)
	}
	if !svc.Package.Individually || !svc.UseDotenv || svc.Plugins.LocalPath != ".plugins" {
		t.Errorf("service options not decoded: %+v", svc)
	}
	if got := svc.AllFunctions(); !slices.Equal(got, []string{"api", "hello", "worker"}) {
		t.Errorf("AllFunctions() = %v", got)
	}

	api, err := svc.Function("api")
	if err != nil {
		t.Fatalf("Function(api) error = %v", err)
	}
	if api.Name != "api" || !api.Runtime.IsCompiled() {
		t.Errorf("api = %+v", api)
	}
	if !slices.Equal(api.Package.Include, []string{"src/Api/Api.csproj"}) {
		t.Errorf("api include = %v", api.Package.Include)
	}

	worker, _ := svc.Function("worker")
	if !worker.IsImage() {
		t.Error("worker should be an image function")
	}
	hello, _ := svc.Function("hello")
	if hello.Package == nil {
		t.Error("Package not normalized for function without package options")
	}

	layer, err := svc.Layer("common")
	if err != nil {
		t.Fatalf("Layer(common) error = %v", err)
	}
	if layer.Name != "common" || layer.Path != "layers/common" || layer.Package == nil {
		t.Errorf("layer = %+v", layer)
	}
}

func TestLoad_TOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{TOMLFileName: tomlManifest})

	svc, err := Load(filepath.Join(dir, TOMLFileName))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if svc.Provider.Runtime != "nodejs20.x" {
		t.Errorf("Provider.Runtime = %q", svc.Provider.Runtime)
	}
	api, err := svc.Function("api")
	if err != nil {
		t.Fatal(err)
	}
	if !api.Runtime.IsCompiled() || len(api.Package.Include) != 1 {
		t.Errorf("api = %+v", api)
	}
	if got := svc.AllLayers(); !slices.Equal(got, []string{"common"}) {
		t.Errorf("AllLayers() = %v", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "cue missing service name",
			file:    CUEFileName,
			content: `functions: hello: handler: "h"`,
			want:    "service",
		},
		{
			name:    "cue unknown field",
			file:    CUEFileName,
			content: `service: "s", bogus: 1`,
			want:    "bogus",
		},
		{
			name:    "cue layer without path",
			file:    CUEFileName,
			content: `service: "s", layers: common: {}`,
			want:    "path",
		},
		{
			name:    "toml function without handler",
			file:    TOMLFileName,
			content: "service = \"s\"\n[functions.hello]\nruntime = \"nodejs20.x\"\n",
			want:    "needs a handler or an image",
		},
		{
			name:    "toml reserved unit name",
			file:    TOMLFileName,
			content: "service = \"s\"\n[functions.con]\nhandler = \"h\"\n",
			want:    "reserved file name",
		},
		{
			name:    "toml unknown field",
			file:    TOMLFileName,
			content: "service = \"s\"\nbogus = 1\n",
			want:    "bogus",
		},
		{
			name:    "unsupported extension",
			file:    "packwright.yaml",
			content: "service: s",
			want:    "unsupported manifest format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.content), filepath.Join(t.TempDir(), tt.file))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Parse() error = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("prefers cue", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		testutil.WriteTree(t, dir, map[string]string{CUEFileName: "", TOMLFileName: ""})
		got, err := Discover(dir)
		if err != nil || got != filepath.Join(dir, CUEFileName) {
			t.Errorf("Discover() = %q, %v", got, err)
		}
	})

	t.Run("falls back to toml", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		testutil.WriteTree(t, dir, map[string]string{TOMLFileName: ""})
		got, err := Discover(dir)
		if err != nil || got != filepath.Join(dir, TOMLFileName) {
			t.Errorf("Discover() = %q, %v", got, err)
		}
	})

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		if _, err := Discover(t.TempDir()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Discover() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_UnknownUnit(t *testing.T) {
	t.Parallel()

	svc := &Service{Name: "s"}
	_, err := svc.Function("missing")
	var unknown *UnknownUnitError
	if !errors.As(err, &unknown) || unknown.Kind != UnitFunction {
		t.Errorf("Function() error = %v", err)
	}
	if _, err := svc.Layer("missing"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("Layer() error = %v, want ErrUnknownUnit", err)
	}
}

func TestRuntime_IsCompiled(t *testing.T) {
	t.Parallel()

	for rt, want := range map[Runtime]bool{
		"dotnet8":    true,
		"dotnetcore": true,
		"nodejs20.x": false,
		"python3.12": false,
		"":           false,
	} {
		if got := rt.IsCompiled(); got != want {
			t.Errorf("Runtime(%q).IsCompiled() = %v, want %v", rt, got, want)
		}
	}
}
