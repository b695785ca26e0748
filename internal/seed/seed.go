// Package seed loads the initial batch of books and ownership entries a
// library is created with.
//
// Seeds may be written in YAML, JSON or CUE. Whatever the format, the data
// is unified with the embedded #Seed schema, which checks shape only:
// ownership entries are not cross-checked against the books they name.
package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/library/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Error codes for seed loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Seed file not found
	ErrCodeFormat      = "E201" // Unsupported file extension
	ErrCodeParse       = "E202" // Syntax error in the seed file
	ErrCodeSchema      = "E203" // Seed does not match #Seed
	ErrCodeSchemaBuild = "E204" // Embedded schema failed to compile
)

// LoadError describes a seed that could not be loaded.
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

// File is the on-disk layout of a seed.
type File struct {
	Books  []string `json:"books" yaml:"books"`
	Owners []Owner  `json:"owners" yaml:"owners"`
}

// Owner is one ownership entry of a seed file.
type Owner struct {
	Owner string `json:"owner" yaml:"owner"`
	Index uint32 `json:"index" yaml:"index"`
}

// State converts the file into the library's state layout.
func (f File) State() ir.State {
	s := ir.State{
		Books:  append([]string{}, f.Books...),
		Owners: make([]ir.Ownership, 0, len(f.Owners)),
	}
	for _, o := range f.Owners {
		s.Owners = append(s.Owners, ir.Ownership{Owner: ir.Identity(o.Owner), RecordIndex: o.Index})
	}
	return s
}

// FromState is the inverse of File.State.
func FromState(s ir.State) File {
	f := File{Books: append([]string{}, s.Books...), Owners: make([]Owner, 0, len(s.Owners))}
	for _, o := range s.Owners {
		f.Owners = append(f.Owners, Owner{Owner: string(o.Owner), Index: o.RecordIndex})
	}
	return f
}

// Load reads and validates the seed at path. The format is chosen by
// extension: .yaml, .yml, .json or .cue.
func Load(path string) (ir.State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ir.State{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("seed file not found: %s", path)}
	}
	if err != nil {
		return ir.State{}, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading seed file: %v", err)}
	}
	return Decode(path, data)
}

// Decode parses seed data. filename selects the format and is used in
// error positions.
func Decode(filename string, data []byte) (ir.State, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Seed"))
	if err := schema.Err(); err != nil {
		return ir.State{}, &LoadError{Code: ErrCodeSchemaBuild, Message: err.Error()}
	}

	var value cue.Value
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		file, err := decodeYAML(data)
		if err != nil {
			return ir.State{}, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("%s: %v", filename, err)}
		}
		value = ctx.Encode(file)
	case ".json", ".cue":
		value = ctx.CompileBytes(data, cue.Filename(filename))
		if err := value.Err(); err != nil {
			return ir.State{}, convertCUEError(ErrCodeParse, err)
		}
	default:
		return ir.State{}, &LoadError{
			Code:    ErrCodeFormat,
			Message: fmt.Sprintf("unsupported seed format %q (want .yaml, .yml, .json or .cue)", ext),
		}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return ir.State{}, convertCUEError(ErrCodeSchema, err)
	}

	var file File
	if err := unified.Decode(&file); err != nil {
		return ir.State{}, convertCUEError(ErrCodeSchema, err)
	}
	return file.State(), nil
}

func decodeYAML(data []byte) (File, error) {
	file := File{Books: []string{}, Owners: []Owner{}}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, err
	}
	if file.Books == nil {
		file.Books = []string{}
	}
	if file.Owners == nil {
		file.Owners = []Owner{}
	}
	return file, nil
}

// convertCUEError returns the first CUE error with its position.
func convertCUEError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// Encode renders a state as a YAML seed.
func Encode(w io.Writer, s ir.State) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromState(s)); err != nil {
		return fmt.Errorf("encode seed: %w", err)
	}
	return enc.Close()
}

// Warnings lists ownership entries that do not line up with the books.
// These are legal seeds; the list is informational.
func Warnings(s ir.State) []string {
	warnings := []string{}
	for pos, o := range s.Owners {
		if uint64(o.RecordIndex) >= uint64(len(s.Books)) {
			warnings = append(warnings, fmt.Sprintf("owners[%d]: index %d has no book", pos, o.RecordIndex))
		}
		if uint64(pos) != uint64(o.RecordIndex) {
			warnings = append(warnings, fmt.Sprintf("owners[%d]: index %d differs from entry position; updates check position %d", pos, o.RecordIndex, pos))
		}
	}
	if len(s.Owners) < len(s.Books) {
		warnings = append(warnings, fmt.Sprintf("%d book(s) have no ownership entry and cannot be updated", len(s.Books)-len(s.Owners)))
	}
	return warnings
}
