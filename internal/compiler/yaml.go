package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/specforge/internal/ir"
)

// NamedSpec is one top-level entry of a spec-definition file.
type NamedSpec struct {
	Name string
	Spec *ir.Specification
	Err  error
}

// CompileYAMLFile parses a YAML spec-definition document.
// The document is a mapping of name → specification; entries are returned in
// document order. A document-level error (bad YAML, non-mapping root) is
// returned as err; per-entry errors are reported on each NamedSpec.
func CompileYAMLFile(file string, data []byte) ([]NamedSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil // empty document
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, yamlError(file, root, "spec", "spec file must be a mapping of name to specification")
	}

	var specs []NamedSpec
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		spec, err := compileYAMLSpec(file, val)
		specs = append(specs, NamedSpec{Name: key.Value, Spec: spec, Err: err})
	}
	return specs, nil
}

func compileYAMLSpec(file string, n *yaml.Node) (*ir.Specification, error) {
	if n.Kind != yaml.MappingNode {
		return nil, yamlError(file, n, "spec", "specification must be a mapping")
	}

	spec := &ir.Specification{}

	idNode := mappingValue(n, "specId")
	if idNode == nil {
		return nil, yamlError(file, n, "specId", "specId is required")
	}
	if idNode.Kind != yaml.ScalarNode || idNode.Value == "" {
		return nil, yamlError(file, idNode, "specId", "specId must be a non-empty string")
	}
	spec.ID = idNode.Value

	if d := mappingValue(n, "description"); d != nil {
		spec.Description = d.Value
	}

	reqsNode := mappingValue(n, "specifications")
	if reqsNode == nil || reqsNode.Kind != yaml.SequenceNode || len(reqsNode.Content) == 0 {
		return nil, yamlError(file, n, "specifications", "at least one requirement is required")
	}

	for _, reqNode := range reqsNode.Content {
		req := ir.Requirement{}
		if d := mappingValue(reqNode, "description"); d != nil {
			req.Description = d.Value
		}

		exNode := mappingValue(reqNode, "sampleExpectations")
		if exNode == nil || exNode.Kind != yaml.SequenceNode || len(exNode.Content) == 0 {
			return nil, yamlError(file, reqNode, "sampleExpectations", "at least one example is required")
		}
		for _, e := range exNode.Content {
			ex, err := compileYAMLExample(file, e)
			if err != nil {
				return nil, err
			}
			req.Examples = append(req.Examples, ex)
		}
		spec.Requirements = append(spec.Requirements, req)
	}

	return spec, nil
}

func compileYAMLExample(file string, n *yaml.Node) (ir.Example, error) {
	var ex ir.Example

	inputs := mappingValue(n, "inputs")
	if inputs == nil {
		return ex, yamlError(file, n, "inputs", "example inputs are required")
	}
	if inputs.Kind != yaml.MappingNode {
		return ex, yamlError(file, inputs, "inputs", "example inputs must be a mapping")
	}
	ex.Inputs = []ir.NamedValue{}
	for i := 0; i+1 < len(inputs.Content); i += 2 {
		val, err := ValueFromYAML(file, inputs.Content[i+1])
		if err != nil {
			return ex, err
		}
		ex.Inputs = append(ex.Inputs, ir.NamedValue{Name: inputs.Content[i].Value, Value: val})
	}

	output := mappingValue(n, "output")
	if output == nil {
		return ex, yamlError(file, n, "output", "example output is required")
	}
	val, err := ValueFromYAML(file, output)
	if err != nil {
		return ex, err
	}
	ex.Output = val

	return ex, nil
}

// ValueFromYAML converts a YAML node into an IRValue.
// Scalars are resolved with YAML 1.2 core-schema tags as yaml.v3 does.
func ValueFromYAML(file string, n *yaml.Node) (ir.IRValue, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return ValueFromYAML(file, n.Alias)
	case yaml.SequenceNode:
		arr := ir.IRArray{}
		for _, c := range n.Content {
			v, err := ValueFromYAML(file, c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		obj := ir.IRObject{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := ValueFromYAML(file, n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj[n.Content[i].Value] = v
		}
		return obj, nil
	case yaml.ScalarNode:
		if n.Tag == "!!timestamp" {
			return ir.IRString(n.Value), nil
		}
		var raw any
		if err := n.Decode(&raw); err != nil {
			return nil, yamlError(file, n, "value", err.Error())
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, yamlError(file, n, "value", err.Error())
		}
		return v, nil
	default:
		return nil, yamlError(file, n, "value", "unsupported YAML node")
	}
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func yamlError(file string, n *yaml.Node, field, msg string) *CompileError {
	return &CompileError{
		Field:   field,
		Message: msg,
		File:    file,
		Line:    n.Line,
		Column:  n.Column,
	}
}
