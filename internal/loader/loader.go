// Package loader discovers specification-definition files and compiles them
// into an ordered list of specifications.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/specforge/internal/artifact"
	"github.com/roach88/specforge/internal/compiler"
	"github.com/roach88/specforge/internal/ir"
)

// Spec-definition file suffixes. The double extension keeps spec files
// distinct from ordinary sources living in the same tree.
const (
	SuffixCUE  = ".spec.cue"
	SuffixYAML = ".spec.yaml"
	SuffixYML  = ".spec.yml"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll skips malformed entries and collects all errors.
	LoadModeCollectAll
)

// LoadResult contains the results of discovering specs under a directory.
type LoadResult struct {
	Specs     []ir.Specification
	Files     []string // spec files in discovery order
	FileCount int
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoFiles    = "E003" // No spec files found
	ErrCodeLoadFailed = "E004" // Spec file unreadable or unparsable
	ErrCodeNotFound   = "E005" // Path not found

	ErrCodeMissingID    = "E101" // specId missing or empty
	ErrCodeDuplicateID  = "E102" // specId already defined
	ErrCodeRequirements = "E103" // no requirements / no examples
	ErrCodeInvalidValue = "E104" // example value not representable
	ErrCodeNameClash    = "E105" // artifact file or identifier taken by another specId
)

// LoadError represents a fatal error that prevents discovery altogether.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MalformedSpecError reports a spec entry (or a whole spec file) that was
// skipped. It never aborts discovery in LoadModeCollectAll.
type MalformedSpecError struct {
	Code string
	File string
	Key  string // top-level entry name; empty for file-level errors
	Err  error
}

func (e *MalformedSpecError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %s: spec %q: %v", e.Code, e.File, e.Key, e.Err)
}

func (e *MalformedSpecError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is (or wraps) a MalformedSpecError.
func IsMalformed(err error) bool {
	var me *MalformedSpecError
	return errors.As(err, &me)
}

// Discover walks root recursively and compiles every spec-definition file.
//
// Specs are returned in file-discovery order (lexical walk), then in-file
// declaration order. A nil result means discovery itself failed (missing
// root, unreadable tree); otherwise errs holds the skipped entries.
func Discover(root string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", root)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", root)}}
	}

	files, err := FindSpecFiles(root)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}

	result := &LoadResult{Files: files, FileCount: len(files)}
	seen := make(map[string]string) // specId -> file that defined it
	names := make(map[string]string) // artifact file or identifier -> specId

	var errs []error
	for _, file := range files {
		entries, err := compileFile(file)
		if err != nil {
			errs = append(errs, &MalformedSpecError{Code: ErrCodeLoadFailed, File: file, Err: err})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		for _, entry := range entries {
			if entry.Err != nil {
				errs = append(errs, &MalformedSpecError{
					Code: codeFor(entry.Err),
					File: file,
					Key:  entry.Name,
					Err:  entry.Err,
				})
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}

			spec := *entry.Spec
			spec.Source = file
			if prev, dup := seen[spec.ID]; dup {
				errs = append(errs, &MalformedSpecError{
					Code: ErrCodeDuplicateID,
					File: file,
					Key:  entry.Name,
					Err:  fmt.Errorf("specId %q already defined in %s", spec.ID, prev),
				})
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			if err := claimNames(names, spec.ID); err != nil {
				errs = append(errs, &MalformedSpecError{
					Code: ErrCodeNameClash,
					File: file,
					Key:  entry.Name,
					Err:  err,
				})
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			seen[spec.ID] = file
			result.Specs = append(result.Specs, spec)
		}
	}

	return result, errs
}

// FindSpecFiles walks the directory and returns all spec-definition file
// paths in lexical order. Hidden directories below root are skipped.
func FindSpecFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSpecFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// IsSpecFile reports whether a file name carries a spec-definition suffix.
func IsSpecFile(name string) bool {
	return strings.HasSuffix(name, SuffixCUE) ||
		strings.HasSuffix(name, SuffixYAML) ||
		strings.HasSuffix(name, SuffixYML)
}

func compileFile(file string) ([]compiler.NamedSpec, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}
	if strings.HasSuffix(file, SuffixCUE) {
		return compiler.CompileCUEFile(file, data)
	}
	return compiler.CompileYAMLFile(file, data)
}

// claimNames reserves the artifact file name and exported identifier of
// specID. File names compare case-insensitively.
func claimNames(names map[string]string, specID string) error {
	file := "file:" + strings.ToLower(artifact.FileName(specID))
	ident := "ident:" + artifact.Identifier(specID)
	for _, key := range []string{file, ident} {
		if other, taken := names[key]; taken {
			_, name, _ := strings.Cut(key, ":")
			return fmt.Errorf("specId %q maps to %s, already used by specId %q", specID, name, other)
		}
	}
	names[file] = specID
	names[ident] = specID
	return nil
}

// codeFor maps a compiler error field to an error code.
func codeFor(err error) string {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return ErrCodeGeneric
	}
	switch ce.Field {
	case "specId":
		return ErrCodeMissingID
	case "specifications", "sampleExpectations", "inputs", "output":
		return ErrCodeRequirements
	case "value":
		return ErrCodeInvalidValue
	default:
		return ErrCodeGeneric
	}
}
