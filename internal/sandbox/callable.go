package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"sort"
	"strconv"
	"strings"
)

// AllowedPackages is the stdlib surface visible to candidates. Nothing that
// reaches the filesystem, network, processes, or unsafe memory is listed.
var AllowedPackages = []string{
	"bytes",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

// packageByName maps a package's local name to its import path.
var packageByName = func() map[string]string {
	m := make(map[string]string, len(AllowedPackages))
	for _, path := range AllowedPackages {
		m[path[strings.LastIndex(path, "/")+1:]] = path
	}
	return m
}()

type param struct {
	name string
	typ  string // element type for the variadic parameter
}

// callable is the static shape of a candidate function literal.
type callable struct {
	params   []param
	variadic bool
	hasError bool
	refs     []string // allowed packages the literal references
}

// analyze parses source as a function literal and records its shape.
func analyze(source string) (*callable, error) {
	expr, err := parser.ParseExpr(strings.TrimSpace(source))
	if err != nil {
		return nil, newError(PhaseParse, "parse candidate: %w", err)
	}
	lit, ok := expr.(*ast.FuncLit)
	if !ok {
		return nil, newError(PhaseParse, "candidate must be a function literal, got %s", types.ExprString(expr))
	}

	c := &callable{}
	for _, field := range lit.Type.Params.List {
		typ := field.Type
		if ell, ok := typ.(*ast.Ellipsis); ok {
			c.variadic = true
			typ = ell.Elt
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, n := range names {
			p := param{typ: types.ExprString(typ)}
			if n != nil && n.Name != "_" {
				p.name = n.Name
			} else {
				p.name = fmt.Sprintf("arg%d", len(c.params))
			}
			c.params = append(c.params, p)
		}
	}

	var results []string
	if lit.Type.Results != nil {
		for _, field := range lit.Type.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				results = append(results, types.ExprString(field.Type))
			}
		}
	}
	switch {
	case len(results) == 1:
	case len(results) == 2 && results[1] == "error":
		c.hasError = true
	default:
		return nil, newError(PhaseParse, "candidate must return (R) or (R, error), got (%s)", strings.Join(results, ", "))
	}

	refs := map[string]bool{}
	ast.Inspect(lit, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok {
			if path, ok := packageByName[id.Name]; ok {
				refs[path] = true
			}
		}
		return true
	})
	for path := range refs {
		c.refs = append(c.refs, path)
	}
	sort.Strings(c.refs)

	return c, nil
}

// Imports returns the allowed packages source references, sorted. It
// fails like Invoke does when source is not a function literal.
func Imports(source string) ([]string, error) {
	c, err := analyze(source)
	if err != nil {
		return nil, err
	}
	return c.refs, nil
}

// imports adds the packages the glue code needs to refs.
func (c *callable) imports() []string {
	set := map[string]bool{"encoding/json": true}
	for _, path := range c.refs {
		set[path] = true
	}
	out := make([]string, 0, len(set))
	for path := range set {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// checkArity validates the argument count against the parameter list.
func (c *callable) checkArity(n int) error {
	fixed := len(c.params)
	if c.variadic {
		fixed--
		if n < fixed {
			return newError(PhaseArgs, "candidate takes at least %d arguments, got %d", fixed, n)
		}
		return nil
	}
	if n != fixed {
		return newError(PhaseArgs, "candidate takes %d arguments, got %d", fixed, n)
	}
	return nil
}

// Names of the glue symbols. The prefix keeps them clear of anything a
// candidate declares inside its own body.
const (
	symRun       = "specforgeRun"
	symCandidate = "specforgeCandidate"
	symDone      = "specforgeDone"
)

// program renders the interpreter input: the candidate bound to a package
// variable plus a run function that decodes argsJSON into the declared
// parameter types, calls the candidate, and encodes the result. The run
// function returns a JSON triple [phase, detail, result]; a panic in the
// candidate propagates to the interpreter.
func (c *callable) program(source string, argsJSON []string) string {
	var b strings.Builder

	b.WriteString("import (\n")
	for _, path := range c.imports() {
		fmt.Fprintf(&b, "\t%q\n", path)
	}
	b.WriteString(")\n\n")

	fmt.Fprintf(&b, "var %s = %s\n\n", symCandidate, strings.TrimSpace(source))

	fmt.Fprintf(&b, "func %s(phase, detail, result string) string {\n", symDone)
	b.WriteString("\tout, _ := json.Marshal([]string{phase, detail, result})\n")
	b.WriteString("\treturn string(out)\n}\n\n")

	fmt.Fprintf(&b, "func %s() string {\n", symRun)

	var call []string
	for i, p := range c.params {
		v := fmt.Sprintf("a%d", i)
		if c.variadic && i == len(c.params)-1 {
			fmt.Fprintf(&b, "\tvar %s []%s\n", v, p.typ)
			for j := i; j < len(argsJSON); j++ {
				fmt.Fprintf(&b, "\t{\n\t\tvar e %s\n", p.typ)
				writeDecode(&b, "\t\t", "e", argsJSON[j], j, p.name)
				fmt.Fprintf(&b, "\t\t%s = append(%s, e)\n\t}\n", v, v)
			}
			call = append(call, v+"...")
			break
		}
		fmt.Fprintf(&b, "\tvar %s %s\n", v, p.typ)
		writeDecode(&b, "\t", v, argsJSON[i], i, p.name)
		call = append(call, v)
	}

	if c.hasError {
		fmt.Fprintf(&b, "\tr, err := %s(%s)\n", symCandidate, strings.Join(call, ", "))
		fmt.Fprintf(&b, "\tif err != nil {\n\t\treturn %s(%q, err.Error(), \"\")\n\t}\n", symDone, PhaseError)
	} else {
		fmt.Fprintf(&b, "\tr := %s(%s)\n", symCandidate, strings.Join(call, ", "))
	}
	b.WriteString("\tout, err := json.Marshal(r)\n")
	fmt.Fprintf(&b, "\tif err != nil {\n\t\treturn %s(%q, err.Error(), \"\")\n\t}\n", symDone, PhaseResult)
	fmt.Fprintf(&b, "\treturn %s(\"\", \"\", string(out))\n}\n", symDone)

	return b.String()
}

func writeDecode(b *strings.Builder, indent, v, raw string, index int, name string) {
	fmt.Fprintf(b, "%sif err := json.Unmarshal([]byte(%s), &%s); err != nil {\n", indent, strconv.Quote(raw), v)
	fmt.Fprintf(b, "%s\treturn %s(%q, %q+err.Error(), \"\")\n", indent, symDone, PhaseArgs,
		fmt.Sprintf("argument %d (%s): ", index, name))
	fmt.Fprintf(b, "%s}\n", indent)
}
