// Package artifact renders validated candidates as Go source files and
// reads them back.
//
// An artifact is one file per spec, <output>/<specId>.go, declaring a
// single exported variable bound to the candidate function literal. A
// header records the spec it came from and the fingerprint it was built
// against.
package artifact

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/roach88/specforge/internal/atomicfile"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/sandbox"
)

// DefaultPackage is the package clause of rendered artifacts.
const DefaultPackage = "generated"

// Header line prefixes.
const (
	headerSpec        = "// Spec: "
	headerDescription = "// Description: "
	headerFingerprint = "// Fingerprint: "
)

// Artifact is a published implementation.
type Artifact struct {
	SpecID      string
	Description string
	Fingerprint string
	Package     string
	Name        string // exported identifier bound to the callable
	Source      string // function literal text
}

// Path returns the artifact location for specID under dir.
func Path(dir, specID string) string {
	return filepath.Join(dir, FileName(specID))
}

// FileName maps specID to a file name. Characters outside [A-Za-z0-9_.-]
// become underscores so a specId can never escape the output directory.
func FileName(specID string) string {
	var b strings.Builder
	for _, r := range specID {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '-':
			b.WriteRune(r)
		case r == '.' && b.Len() > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + ".go"
}

// Identifier derives the exported Go name for specID: word boundaries are
// dropped and each word is capitalised. A leading digit gets a "Spec"
// prefix.
func Identifier(specID string) string {
	var b strings.Builder
	upper := true
	for _, r := range specID {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	name := b.String()
	if name == "" || unicode.IsDigit([]rune(name)[0]) {
		name = "Spec" + name
	}
	return name
}

// Render produces the artifact file for a validated candidate. Output is
// gofmt-formatted and depends only on its arguments.
func Render(spec *ir.Specification, fingerprint, source, pkg string) ([]byte, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("invalid package name %q", pkg)
	}
	imports, err := sandbox.Imports(source)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", spec.ID, err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by specforge from spec %s. DO NOT EDIT.\n", spec.ID)
	fmt.Fprintf(&b, "%s%s\n", headerSpec, spec.ID)
	if spec.Description != "" {
		lines := strings.Split(strings.TrimSpace(spec.Description), "\n")
		fmt.Fprintf(&b, "%s%s\n", headerDescription, lines[0])
		for _, l := range lines[1:] {
			fmt.Fprintf(&b, "//   %s\n", l)
		}
	}
	fmt.Fprintf(&b, "%s%s\n\n", headerFingerprint, fingerprint)
	fmt.Fprintf(&b, "package %s\n\n", pkg)

	if len(imports) > 0 {
		b.WriteString("import (\n")
		for _, path := range imports {
			fmt.Fprintf(&b, "\t%q\n", path)
		}
		b.WriteString(")\n\n")
	}

	name := Identifier(spec.ID)
	fmt.Fprintf(&b, "// %s implements spec %s.\n", name, spec.ID)
	fmt.Fprintf(&b, "var %s = %s\n", name, strings.TrimSpace(source))

	out, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("render %s: format: %w", spec.ID, err)
	}
	return out, nil
}

// Write atomically replaces the file at path with data.
func Write(path string, data []byte) error {
	return atomicfile.WriteFile(path, data, 0o644)
}

// ErrNotArtifact is returned by Read for files that are not artifacts.
var ErrNotArtifact = errors.New("not a specforge artifact")

// Read parses an artifact file and extracts its callable.
func Read(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse extracts an artifact from file content. name is used for
// positions in error messages.
func Parse(name string, data []byte) (*Artifact, error) {
	a := &Artifact{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "package ") {
			break
		}
		switch {
		case strings.HasPrefix(line, headerSpec):
			a.SpecID = strings.TrimPrefix(line, headerSpec)
		case strings.HasPrefix(line, headerDescription):
			a.Description = strings.TrimPrefix(line, headerDescription)
		case strings.HasPrefix(line, "//   ") && a.Description != "":
			a.Description += "\n" + strings.TrimPrefix(line, "//   ")
		case strings.HasPrefix(line, headerFingerprint):
			a.Fingerprint = strings.TrimPrefix(line, headerFingerprint)
		}
	}
	if a.SpecID == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNotArtifact)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name, data, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	a.Package = file.Name.Name

	want := Identifier(a.SpecID)
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, s := range gen.Specs {
			vs := s.(*ast.ValueSpec)
			if len(vs.Names) != 1 || vs.Names[0].Name != want || len(vs.Values) != 1 {
				continue
			}
			lit, ok := vs.Values[0].(*ast.FuncLit)
			if !ok {
				return nil, fmt.Errorf("%s: %s is not a function literal", name, want)
			}
			start := fset.Position(lit.Pos()).Offset
			end := fset.Position(lit.End()).Offset
			a.Name = want
			a.Source = string(data[start:end])
			return a, nil
		}
	}
	return nil, fmt.Errorf("%s: no declaration of %s: %w", name, want, ErrNotArtifact)
}
