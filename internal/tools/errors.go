package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for tool execution.
var (
	// ErrToolNotFound indicates a requested tool doesn't exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolTimeout indicates a tool execution timed out.
	ErrToolTimeout = errors.New("tool execution timed out")

	// ErrToolPanic indicates a tool panicked during execution.
	ErrToolPanic = errors.New("tool panicked")
)

// ErrorType categorizes tool execution faults for retry logic.
type ErrorType string

const (
	ErrorNotFound  ErrorType = "not_found"
	ErrorTimeout   ErrorType = "timeout"
	ErrorNetwork   ErrorType = "network"
	ErrorExecution ErrorType = "execution"
	ErrorPanic     ErrorType = "panic"
	ErrorUnknown   ErrorType = "unknown"
)

// IsRetryable returns true if this fault type suggests retrying may succeed.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case ErrorTimeout, ErrorNetwork:
		return true
	default:
		return false
	}
}

// Error is a structured fault from tool execution with categorization for
// retry logic.
type Error struct {
	Type     ErrorType
	ToolName string
	CallID   string
	Message  string
	Cause    error
	Attempts int
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempts=%d)", e.Attempts))
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a tool Error with the type inferred from the cause.
func NewError(toolName string, cause error) *Error {
	err := &Error{
		ToolName: toolName,
		Cause:    cause,
		Type:     ErrorUnknown,
		Attempts: 1,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Type = classify(cause)
	}
	return err
}

// WithType sets the fault type.
func (e *Error) WithType(t ErrorType) *Error {
	e.Type = t
	return e
}

// WithCallID correlates the fault with a specific tool call.
func (e *Error) WithCallID(id string) *Error {
	e.CallID = id
	return e
}

// WithMessage sets a custom human-readable message.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func classify(err error) ErrorType {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, ErrToolNotFound) {
		return ErrorNotFound
	}
	if errors.Is(err, ErrToolTimeout) {
		return ErrorTimeout
	}
	if errors.Is(err, ErrToolPanic) {
		return ErrorPanic
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ErrorTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"),
		strings.Contains(msg, "refused"), strings.Contains(msg, "unreachable"):
		return ErrorNetwork
	default:
		return ErrorExecution
	}
}

// IsRetryable checks whether a fault should be retried based on its type.
func IsRetryable(err error) bool {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr.Type.IsRetryable()
	}
	return classify(err).IsRetryable()
}
