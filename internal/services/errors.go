package services

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a failure category surfaced to users and API clients.
type Code string

const (
	CodeSuccess             Code = "S000"
	CodeInvalidArgs         Code = "E100"
	CodeInputNotFound       Code = "E110"
	CodeUnsupportedInput    Code = "E120"
	CodeInvalidSteps        Code = "E130"
	CodeExtractionFailed    Code = "E200"
	CodeTranscriptionFailed Code = "E210"
	CodeAIKeyMissing        Code = "E300"
	CodeAICallFailed        Code = "E310"
	CodePromptMissing       Code = "E320"
	CodePartialChunkFailure Code = "E330"
	CodeFileIO              Code = "E400"
	CodeInternal            Code = "E500"
	CodeUploadFailed        Code = "E600"
	CodeTaskFailed          Code = "E620"
)

var codeMessages = map[Code]string{
	CodeSuccess:             "success",
	CodeInvalidArgs:         "invalid arguments",
	CodeInputNotFound:       "input not found",
	CodeUnsupportedInput:    "unsupported input type",
	CodeInvalidSteps:        "invalid step selection",
	CodeExtractionFailed:    "audio extraction failed",
	CodeTranscriptionFailed: "transcription failed",
	CodeAIKeyMissing:        "ai api key missing",
	CodeAICallFailed:        "ai call failed",
	CodePromptMissing:       "prompt missing",
	CodePartialChunkFailure: "one or more chunks failed",
	CodeFileIO:              "file operation failed",
	CodeInternal:            "internal error",
	CodeUploadFailed:        "upload failed",
	CodeTaskFailed:          "task failed",
}

// Message returns the default human-readable text for the code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return codeMessages[CodeInternal]
}

// Sentinel markers used with errors.Is. Every *Error matches the sentinel for its code.
var (
	ErrInvalidArgs         = errors.New("invalid arguments")
	ErrInputNotFound       = errors.New("input not found")
	ErrUnsupportedInput    = errors.New("unsupported input")
	ErrInvalidSteps        = errors.New("invalid steps")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrAIKeyMissing        = errors.New("ai key missing")
	ErrAICallFailed        = errors.New("ai call failed")
	ErrPromptMissing       = errors.New("prompt missing")
	ErrPartialChunkFailure = errors.New("partial chunk failure")
	ErrFileIO              = errors.New("file io")
	ErrInternal            = errors.New("internal error")
	ErrUploadFailed        = errors.New("upload failed")
	ErrTaskFailed          = errors.New("task failed")
)

var codeMarkers = map[Code]error{
	CodeInvalidArgs:         ErrInvalidArgs,
	CodeInputNotFound:       ErrInputNotFound,
	CodeUnsupportedInput:    ErrUnsupportedInput,
	CodeInvalidSteps:        ErrInvalidSteps,
	CodeExtractionFailed:    ErrExtractionFailed,
	CodeTranscriptionFailed: ErrTranscriptionFailed,
	CodeAIKeyMissing:        ErrAIKeyMissing,
	CodeAICallFailed:        ErrAICallFailed,
	CodePromptMissing:       ErrPromptMissing,
	CodePartialChunkFailure: ErrPartialChunkFailure,
	CodeFileIO:              ErrFileIO,
	CodeInternal:            ErrInternal,
	CodeUploadFailed:        ErrUploadFailed,
	CodeTaskFailed:          ErrTaskFailed,
}

// Error is the structured failure carried through the pipeline. Message is the
// short description and Details the free-form context (paths, indices, causes).
type Error struct {
	Code    Code
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Code))
	b.WriteString("] ")
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString(" | ")
		b.WriteString(e.Details)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel marker registered for the error's code.
func (e *Error) Is(target error) bool {
	marker, ok := codeMarkers[e.Code]
	return ok && marker == target
}

// New builds a coded error with the default message for code.
func New(code Code, details string) *Error {
	return &Error{Code: code, Message: code.Message(), Details: strings.TrimSpace(details)}
}

// Newf builds a coded error with formatted details.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap builds a coded error whose details include step and operation context.
// The wrapped err stays reachable through errors.Is and errors.As.
func Wrap(code Code, step, operation, message string, err error) error {
	return &Error{
		Code:    code,
		Message: code.Message(),
		Details: buildDetail(step, operation, message),
		Err:     err,
	}
}

// Details is the wire form of a failure: {code, message, details}.
type Details struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// DetailsOf extracts the structured triple from any error chain. Errors that
// carry no code are reported as internal errors with their text as details.
func DetailsOf(err error) Details {
	if err == nil {
		return Details{Code: CodeSuccess, Message: CodeSuccess.Message()}
	}
	var coded *Error
	if errors.As(err, &coded) {
		details := coded.Details
		if coded.Err != nil {
			if details != "" {
				details += ": "
			}
			details += coded.Err.Error()
		}
		return Details{Code: coded.Code, Message: coded.Message, Details: details}
	}
	return Details{Code: CodeInternal, Message: CodeInternal.Message(), Details: err.Error()}
}

// CodeOf returns the outermost code in err's chain.
func CodeOf(err error) Code {
	return DetailsOf(err).Code
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	return strings.Join(parts, ": ")
}
