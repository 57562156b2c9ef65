package core

import (
	"errors"
	"fmt"
	"strings"
)

// Result is the outcome code of a Process call.
type Result int

const (
	Success       Result = 0
	Pending       Result = 1
	ErrorGeneric  Result = -128
	ParseError    Result = -129
	MetaError     Result = -131
	MissingFile   Result = -132
	InvalidFormat Result = -133
	IOError       Result = -135
	CompilerError Result = -136
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case Pending:
		return "Pending"
	case ParseError:
		return "ParseError"
	case MetaError:
		return "MetaError"
	case MissingFile:
		return "MissingFile"
	case InvalidFormat:
		return "InvalidFormat"
	case IOError:
		return "IOError"
	case CompilerError:
		return "CompilerError"
	}
	return "ErrorGeneric"
}

// Terminal reports whether the result ends a processing attempt.
func (r Result) Terminal() bool {
	return r != Pending
}

var (
	// ErrPending is returned when the time slice ran out before a stable state was reached.
	ErrPending = errors.New("pending")

	ErrGeneric       = &ProcessError{Code: ErrorGeneric}
	ErrParse         = &ProcessError{Code: ParseError}
	ErrMeta          = &ProcessError{Code: MetaError}
	ErrMissingFile   = &ProcessError{Code: MissingFile}
	ErrInvalidFormat = &ProcessError{Code: InvalidFormat}
	ErrIO            = &ProcessError{Code: IOError}
	ErrCompiler      = &ProcessError{Code: CompilerError}
)

// ProcessError is a terminal failure of a processor. Asset, Key and Slot give
// authors enough context to find the broken metadata.
type ProcessError struct {
	Code  Result
	Asset string
	Key   string
	Slot  int // -1 when not slot related
	Err   error
}

func (e *ProcessError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code.String())
	if e.Asset != "" {
		fmt.Fprintf(&sb, " asset=%q", e.Asset)
	}
	if e.Key != "" {
		fmt.Fprintf(&sb, " key=%q", e.Key)
	}
	if e.Slot >= 0 && (e.Asset != "" || e.Key != "" || e.Err != nil) {
		fmt.Fprintf(&sb, " slot=%d", e.Slot)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Is matches any ProcessError carrying the same code, so errors.Is(err, ErrMeta) works.
func (e *ProcessError) Is(target error) bool {
	var t *ProcessError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Errorf builds a ProcessError for an asset.
func Errorf(code Result, asset string, format string, args ...interface{}) *ProcessError {
	return &ProcessError{Code: code, Asset: asset, Slot: -1, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Result, asset string, err error) *ProcessError {
	return &ProcessError{Code: code, Asset: asset, Slot: -1, Err: err}
}

// KeyError is a MetaError (or other code) about a single metadata key.
func KeyError(code Result, asset, key string, err error) *ProcessError {
	return &ProcessError{Code: code, Asset: asset, Key: key, Slot: -1, Err: err}
}

// SlotError annotates a failure with the texture slot it belongs to.
func SlotError(code Result, asset string, slot int, err error) *ProcessError {
	return &ProcessError{Code: code, Asset: asset, Slot: slot, Err: err}
}

// ResultOf maps an error returned by Process back to its code.
func ResultOf(err error) Result {
	if err == nil {
		return Success
	}
	if errors.Is(err, ErrPending) {
		return Pending
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrorGeneric
}
