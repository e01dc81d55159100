package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error by the pipeline stage that produced it.
type ErrorClass string

const (
	// ErrorClassConfig indicates invalid user input detected before any
	// processing starts: a bad policy token, a missing input file, an
	// unmatched argument.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassStructural indicates an invalid solution layout detected
	// before materialization, such as duplicate project file names.
	ErrorClassStructural ErrorClass = "structural"

	// ErrorClassResolution indicates a per-context resolution failure.
	// Resolution errors are recovered at the processing loop and never
	// abort the run on their own.
	ErrorClassResolution ErrorClass = "resolution"

	// ErrorClassEmission indicates an artifact emission failure: snapshot
	// drift under a frozen pack set, a file write failure, a missing
	// selection-set target. Fatal to the operation, but only raised after
	// all context processing has completed.
	ErrorClassEmission ErrorClass = "emission"
)

// BuildError is a classified error with file and context attribution.
type BuildError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// File is the input or output file the error refers to, if applicable.
	File string `json:"file,omitempty"`

	// Context is the build context name the error refers to, if applicable.
	Context string `json:"context,omitempty"`

	// Artifact is the artifact kind being emitted when the error occurred.
	Artifact string `json:"artifact,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Context != "" {
		msg += fmt.Sprintf(" (context=%s)", e.Context)
	}
	if e.File != "" {
		msg += fmt.Sprintf(" (file=%s)", e.File)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, err error) *BuildError {
	return &BuildError{Class: ErrorClassConfig, Message: message, Err: err}
}

// NewStructuralError creates a new structural error.
func NewStructuralError(message string, err error) *BuildError {
	return &BuildError{Class: ErrorClassStructural, Message: message, Err: err}
}

// NewResolutionError creates a new resolution error.
func NewResolutionError(message string, err error) *BuildError {
	return &BuildError{Class: ErrorClassResolution, Message: message, Err: err}
}

// NewEmissionError creates a new emission error.
func NewEmissionError(message string, err error) *BuildError {
	return &BuildError{Class: ErrorClassEmission, Message: message, Err: err}
}

// WithFile adds file attribution to an error.
func (e *BuildError) WithFile(path string) *BuildError {
	e.File = path
	return e
}

// WithBuildContext adds context attribution to an error.
func (e *BuildError) WithBuildContext(name string) *BuildError {
	e.Context = name
	return e
}

// WithArtifact adds artifact attribution to an error.
func (e *BuildError) WithArtifact(kind string) *BuildError {
	e.Artifact = kind
	return e
}

// IsConfig reports whether the error is classified as a configuration error.
func IsConfig(err error) bool {
	return hasClass(err, ErrorClassConfig)
}

// IsStructural reports whether the error is classified as structural.
func IsStructural(err error) bool {
	return hasClass(err, ErrorClassStructural)
}

// IsResolution reports whether the error is classified as a resolution error.
func IsResolution(err error) bool {
	return hasClass(err, ErrorClassResolution)
}

// IsEmission reports whether the error is classified as an emission error.
func IsEmission(err error) bool {
	return hasClass(err, ErrorClassEmission)
}

func hasClass(err error, class ErrorClass) bool {
	var e *BuildError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
