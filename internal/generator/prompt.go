package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/sandbox"
)

// SystemInstruction frames every request.
const SystemInstruction = "You write small, pure Go functions. You answer with Go source only."

// BuildPrompt renders the request for spec: its description, each
// requirement with its examples as JSON, and the calling contract a
// candidate must follow.
func BuildPrompt(spec *ir.Specification) string {
	var b strings.Builder

	b.WriteString("Write a Go function literal that implements the specification below.\n\n")
	fmt.Fprintf(&b, "Spec: %s\n", spec.ID)
	if spec.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", spec.Description)
	}

	b.WriteString("\nRequirements:\n")
	for i, req := range spec.Requirements {
		desc := req.Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, desc)
		for _, ex := range req.Examples {
			data, err := json.Marshal(ex)
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "   - %s\n", data)
		}
	}

	b.WriteString("\nContract:\n")
	b.WriteString("- Answer with a single Go function literal expression, such as func(a int, b int) map[string]any { ... }.\n")
	if names := parameterNames(spec); len(names) > 0 {
		fmt.Fprintf(&b, "- Parameters are positional, in the order the example inputs are listed: %s.\n", strings.Join(names, ", "))
	} else {
		b.WriteString("- The function takes no parameters.\n")
	}
	b.WriteString("- Example values are JSON. Use int for integral numbers, float64 for fractional ones, slices for arrays, and maps or structs with json tags for objects.\n")
	b.WriteString("- The returned value must encode to JSON equal to the example output. Returning (value, error) is allowed.\n")
	fmt.Fprintf(&b, "- Only these packages may be referenced, without import statements: %s.\n", strings.Join(sandbox.AllowedPackages, ", "))
	b.WriteString("- Do not write a package clause, imports, or any other top-level declarations.\n")
	b.WriteString("- Return ONLY the code, without markdown fences or explanations.\n")

	return b.String()
}

// parameterNames takes input names from the first example.
func parameterNames(spec *ir.Specification) []string {
	for _, req := range spec.Requirements {
		for _, ex := range req.Examples {
			names := make([]string, len(ex.Inputs))
			for i, in := range ex.Inputs {
				names[i] = in.Name
			}
			return names
		}
	}
	return nil
}

var fenced = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\n(.*?)\n?[ \t]*```")

// CleanSource strips markdown code fences and surrounding prose from a
// service answer. When the answer contains a fenced block, the first block
// wins; an unterminated opening fence is dropped.
func CleanSource(text string) string {
	if m := fenced.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if _, rest, ok := strings.Cut(text, "\n"); ok {
			text = rest
		} else {
			text = ""
		}
	}
	return strings.TrimSpace(text)
}
