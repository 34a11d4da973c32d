// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Doc: {
	name:   string & =~"^[a-z]+$"
	count?: int & >=0
	tags?: [...string]
}
`

type testDoc struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestDecode(t *testing.T) {
	t.Parallel()

	doc, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "svc", count: 2, tags: ["a"]`), "#Doc")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if doc.Name != "svc" || doc.Count != 2 || len(doc.Tags) != 1 {
		t.Errorf("Decode() = %+v", doc)
	}
}

func TestDecode_ValidationError(t *testing.T) {
	t.Parallel()

	_, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "svc", tags: ["a", 3]`), "#Doc",
		WithFilename("doc.cue"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Decode() error = %v, want ErrValidation", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Decode() error type = %T", err)
	}
	if verr.File != "doc.cue" {
		t.Errorf("File = %q, want doc.cue", verr.File)
	}
	found := false
	for _, f := range verr.Fields {
		if f.Path == "tags[1]" {
			found = true
		}
	}
	if !found {
		t.Errorf("no failure reported at tags[1]: %+v", verr.Fields)
	}
}

func TestDecode_ClosedDefinition(t *testing.T) {
	t.Parallel()

	_, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "svc", unknown: true`), "#Doc")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Decode() error = %v, want ErrValidation for an undeclared field", err)
	}
}

func TestDecode_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "svc`), "#Doc", WithFilename("bad.cue"))
	if err == nil || !strings.Contains(err.Error(), "bad.cue") {
		t.Errorf("Decode() error = %v, want an error naming bad.cue", err)
	}
}

func TestDecode_FileSizeLimit(t *testing.T) {
	t.Parallel()

	_, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "svc"`), "#Doc", WithMaxFileSize(4))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("Decode() error = %v, want size limit error", err)
	}
}

func TestDecode_MissingDefinition(t *testing.T) {
	t.Parallel()

	_, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "svc"`), "#Nope")
	if err == nil || !strings.Contains(err.Error(), "internal error") {
		t.Errorf("Decode() error = %v, want internal error", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"functions", "hello", "handler"}, "functions.hello.handler"},
		{[]string{"package", "include", "0"}, "package.include[0]"},
		{[]string{"layers", "0", "path", "12"}, "layers[0].path[12]"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFormatError_NonCUE(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x.cue") != nil {
		t.Error("FormatError(nil) != nil")
	}
	base := errors.New("boom")
	err := FormatError(base, "x.cue")
	if !errors.Is(err, base) || !strings.HasPrefix(err.Error(), "x.cue: ") {
		t.Errorf("FormatError() = %v", err)
	}
}
