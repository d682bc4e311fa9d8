package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/covenant/internal/compiler"
	"github.com/roach88/covenant/internal/ir"
	"github.com/roach88/covenant/internal/registry"
	"github.com/roach88/covenant/internal/source"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the declarations loaded from a directory.
type LoadResult struct {
	Decls     []ir.TypeDecl
	FileCount int    // Number of declaration files found
	Source    string // "cue" or "go"
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads type declarations from a directory. CUE files are
// preferred; a directory with none is scanned as a Go package for
// //covenant: directives.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) > 0 {
		return loadCUE(dir, cueFiles, mode)
	}

	goFiles, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(goFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE or Go files found in %s", dir)}}
	}
	return loadGo(dir, len(goFiles))
}

// loadCUE builds the CUE files of dir as one instance, so declarations
// may be split across files.
func loadCUE(dir string, files []string, mode LoadMode) (*LoadResult, []error) {
	args := make([]string, len(files))
	for i, f := range files {
		args[i] = filepath.Base(f)
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(files), Source: "cue"}
	var errs []error

	typesVal := value.LookupPath(cue.ParsePath("type"))
	if typesVal.Exists() {
		iter, iterErr := typesVal.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating types: %v", iterErr)}}
		}
		for iter.Next() {
			decl, compileErr := compiler.CompileType(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "type."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Decls = append(result.Decls, *decl)
		}
	}

	if len(result.Decls) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no type declarations found in specs"})
	}
	return result, errs
}

func loadGo(dir string, fileCount int) (*LoadResult, []error) {
	result := &LoadResult{FileCount: fileCount, Source: "go"}
	decls, err := source.Scan(dir)
	if err != nil {
		var errs []error
		for _, e := range unjoin(err) {
			var de *source.DirectiveError
			if errors.As(e, &de) {
				errs = append(errs, &LoadError{Code: ErrCodeDirective, Message: de.Error()})
				continue
			}
			errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: e.Error()})
		}
		return result, errs
	}
	result.Decls = decls
	if len(decls) == 0 {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no type declarations found in specs"}}
	}
	return result, nil
}

// unjoin splits an errors.Join result back into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

// LoadRegistry loads a directory and declares everything in a new
// registry.
func LoadRegistry(dir string, opts ...registry.Option) (*registry.Registry, *LoadResult, error) {
	result, errs := LoadSpecs(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, result, errs[0]
	}
	reg := registry.New(opts...)
	if err := reg.DeclareAll(result.Decls); err != nil {
		return nil, result, &LoadError{Code: ErrCodeDeclare, Message: err.Error()}
	}
	return reg, result, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE or Go files found
	ErrCodeLoadFailed  = "E004" // CUE load or Go parse failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeDirective   = "E008" // Malformed //covenant: directive
	ErrCodeDeclare     = "E009" // Registry rejected a declaration

	// Declaration field errors
	ErrCodeInvalidOperation = "E120" // Malformed operation block
	ErrCodeInvalidCUE       = "E121" // CUE evaluation error
	ErrCodeInvalidField     = "E122" // Field of the wrong shape
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeInvalidCUE
	case strings.HasPrefix(field, "operation."):
		return ErrCodeInvalidOperation
	case field == "parents", field == "invariant", field == "abstract", field == "skip",
		field == "requires", field == "ensures", field == "pure", field == "constructor":
		return ErrCodeInvalidField
	default:
		return ErrCodeGeneric
	}
}
