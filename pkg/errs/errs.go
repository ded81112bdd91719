// Package errs provides the typed error taxonomy of the conversion
// core. Every error carries the offending file path and the specific
// field or index at fault, so callers can report failures precisely and
// match on category with errors.As.
package errs

import "fmt"

// FormatError reports an unparseable file: a missing required field, a
// non-numeric value or broken block nesting.
type FormatError struct {
	// Path is the file that failed to parse.
	Path string

	// Field names the key at fault, when the failure is field-level.
	Field string

	// Offset is the byte offset of the fault for structural errors
	// (unmatched braces). Negative when not applicable.
	Offset int64

	Msg string
}

func (e *FormatError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: field %q: %s", e.Path, e.Field, e.Msg)
	case e.Offset >= 0:
		return fmt.Sprintf("%s: offset %d: %s", e.Path, e.Offset, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Path, e.Msg)
	}
}

// NewFormatError returns a field-level FormatError.
func NewFormatError(path, field, msg string) *FormatError {
	return &FormatError{Path: path, Field: field, Offset: -1, Msg: msg}
}

// EncodingError reports that no configured text encoding decoded a file
// without substitution.
type EncodingError struct {
	Path  string
	Tried []string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: no configured encoding decodes file cleanly (tried %v)", e.Path, e.Tried)
}

// SizeMismatchError reports a binary payload whose length disagrees with
// the declared geometry.
type SizeMismatchError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s: binary length %d bytes, geometry requires %d", e.Path, e.Actual, e.Expected)
}

// MissingSliceError reports a gap in the dose slice index sequence.
type MissingSliceError struct {
	// Base is the path prefix the slice files are discovered under.
	Base string

	// Index is the first absent slice index.
	Index int
}

func (e *MissingSliceError) Error() string {
	return fmt.Sprintf("%s: dose slice index %d is missing (expected %s.binary.%03d)", e.Base, e.Index, e.Base, e.Index)
}

// GeometryInconsistencyError reports a cross-object spatial mismatch
// beyond tolerance.
type GeometryInconsistencyError struct {
	// Axis names the axis or quantity at fault ("x", "y", "z").
	Axis string

	Msg string
}

func (e *GeometryInconsistencyError) Error() string {
	if e.Axis != "" {
		return fmt.Sprintf("geometry inconsistency on %s axis: %s", e.Axis, e.Msg)
	}
	return fmt.Sprintf("geometry inconsistency: %s", e.Msg)
}

// IdentifierError reports a duplicate identifier inside one allocation.
// The single-allocation design should make this unreachable; it exists
// as a defensive check.
type IdentifierError struct {
	ID  string
	Msg string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("identifier %q: %s", e.ID, e.Msg)
}
