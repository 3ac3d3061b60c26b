package compiler

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CompileCUEFile compiles a CUE spec-definition file.
// Every regular top-level field is a specification; hidden fields and
// definitions are helpers and are not returned. Entries are in declaration
// order. A file that does not build is returned as err.
func CompileCUEFile(file string, data []byte) ([]NamedSpec, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(file))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := value.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []NamedSpec
	for iter.Next() {
		spec, err := CompileSpec(iter.Value())
		specs = append(specs, NamedSpec{Name: iter.Selector().Unquoted(), Spec: spec, Err: err})
	}
	return specs, nil
}
