// Package errors provides the error taxonomy of a live mission session and the
// helpers used to classify errors for logging and display.
//
// # Error Types
//
//   - TransportError: a stream or request could not reach the service.
//     Recoverable; drives reconnect backoff or a retry prompt.
//   - ProtocolError: a payload could not be understood. Dropped and logged.
//   - IllegalTransitionError: an update the state machine refused. Logged as a
//     consistency warning and never shown to the operator.
//   - CommandRejectedError: the service refused a control action. Shown to the
//     operator verbatim.
//
// # Usage
//
//	err := errors.NewTransportError("fetch snapshot", cause).WithMissionID("42")
//
//	if errors.Is(err, errors.ErrUnreachable) { ... }
//
//	var rejected *errors.CommandRejectedError
//	if errors.As(err, &rejected) {
//	    show(rejected.Reason)
//	}
//
//	if errors.IsUserFacing(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrUnreachable indicates the service could not be reached.
	ErrUnreachable = New("service unreachable")
	// ErrInvalidResponse indicates a payload that could not be decoded.
	ErrInvalidResponse = New("invalid response")
	// ErrIllegalTransition indicates an update the state machine refused.
	ErrIllegalTransition = New("illegal status transition")
	// ErrCommandRejected indicates the service refused a control action.
	ErrCommandRejected = New("command rejected")
)

var (
	// ErrActionNotPermitted indicates an action that is not an outgoing edge
	// of the current status.
	ErrActionNotPermitted = New("action not permitted")
	// ErrCommandPending indicates another control action awaits its response.
	ErrCommandPending = New("command already pending")
	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = New("session closed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SurveyError is the base interface for all errors raised by this module.
type SurveyError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to show operators.
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// TransportError
// -----------------------------------------------------------------------------

// TransportError represents a stream or request failure.
//
// Example:
//
//	err := errors.NewTransportError("control pause", dialErr).WithMissionID("42")
//	fmt.Println(err) // "transport error [mission=42]: control pause: service unreachable: dial tcp ..."
type TransportError struct {
	baseError
	Operation string
	MissionID string
}

// NewTransportError creates a new TransportError.
func NewTransportError(operation string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{
			message:    operation,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
	}
}

// WithMissionID adds the mission id to the error context.
func (e *TransportError) WithMissionID(id string) *TransportError {
	e.MissionID = id
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	prefix := "transport error"
	if e.MissionID != "" {
		prefix = fmt.Sprintf("transport error [mission=%s]", e.MissionID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v: %v", prefix, e.message, ErrUnreachable, e.cause)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.message, ErrUnreachable)
}

// Is checks if this error matches the target.
func (e *TransportError) Is(target error) bool {
	if _, ok := target.(*TransportError); ok {
		return true
	}
	if target == ErrUnreachable {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// ProtocolError
// -----------------------------------------------------------------------------

// ProtocolError represents a payload that could not be understood.
type ProtocolError struct {
	baseError
	// Payload is a truncated copy of the offending payload, for logs.
	Payload string
}

// maxPayloadExcerpt bounds the payload copy kept on a ProtocolError.
const maxPayloadExcerpt = 256

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: false,
		},
	}
}

// WithPayload records an excerpt of the offending payload.
func (e *ProtocolError) WithPayload(payload []byte) *ProtocolError {
	s := string(payload)
	if len(s) > maxPayloadExcerpt {
		s = s[:maxPayloadExcerpt] + "..."
	}
	e.Payload = s
	return e
}

// Error returns the formatted error message.
func (e *ProtocolError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.message, e.cause)
	}
	return fmt.Sprintf("protocol error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *ProtocolError) Is(target error) bool {
	if _, ok := target.(*ProtocolError); ok {
		return true
	}
	if target == ErrInvalidResponse {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// IllegalTransitionError
// -----------------------------------------------------------------------------

// IllegalTransitionError represents an update refused by the state machine.
// It is expected under races and is only ever logged.
type IllegalTransitionError struct {
	baseError
	From   string
	To     string
	Source string // "stream", "refetch", or "command:<action>"
	Stale  bool   // refused because a newer status had already been accepted
}

// NewIllegalTransitionError creates a new IllegalTransitionError.
func NewIllegalTransitionError(from, to, source string) *IllegalTransitionError {
	return &IllegalTransitionError{
		baseError: baseError{
			message:    "status update rejected",
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: false,
		},
		From:   from,
		To:     to,
		Source: source,
	}
}

// WithStale marks the rejection as a staleness decision.
func (e *IllegalTransitionError) WithStale(stale bool) *IllegalTransitionError {
	e.Stale = stale
	return e
}

// Error returns the formatted error message.
func (e *IllegalTransitionError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, "source="+e.Source)
	}
	if e.Stale {
		parts = append(parts, "stale")
	}
	prefix := "illegal transition"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("illegal transition [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s -> %s", prefix, e.From, e.To)
}

// Is checks if this error matches the target.
func (e *IllegalTransitionError) Is(target error) bool {
	if _, ok := target.(*IllegalTransitionError); ok {
		return true
	}
	return target == ErrIllegalTransition
}

// -----------------------------------------------------------------------------
// CommandRejectedError
// -----------------------------------------------------------------------------

// CommandRejectedError represents a control action refused by the service.
// Reason carries the service's own explanation and is shown verbatim.
type CommandRejectedError struct {
	baseError
	Action     string
	Reason     string
	StatusCode int
}

// NewCommandRejectedError creates a new CommandRejectedError.
func NewCommandRejectedError(action, reason string, statusCode int) *CommandRejectedError {
	return &CommandRejectedError{
		baseError: baseError{
			message:    reason,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Action:     action,
		Reason:     reason,
		StatusCode: statusCode,
	}
}

// Error returns the formatted error message.
func (e *CommandRejectedError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("request rejected (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s rejected (HTTP %d): %s", e.Action, e.StatusCode, e.Reason)
}

// Is checks if this error matches the target.
func (e *CommandRejectedError) Is(target error) bool {
	if _, ok := target.(*CommandRejectedError); ok {
		return true
	}
	return target == ErrCommandRejected
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var surveyErr SurveyError
	if As(err, &surveyErr) {
		return surveyErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to show operators.
// Local refusals (not permitted, pending, closed) are always user-facing.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    notice = err.Error()
//	} else {
//	    notice = "unexpected response from the service"
//	    logger.Error("command failed", "error", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var surveyErr SurveyError
	if As(err, &surveyErr) {
		return surveyErr.IsUserFacing()
	}
	return Is(err, ErrActionNotPermitted) || Is(err, ErrCommandPending) || Is(err, ErrSessionClosed)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SurveyError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var surveyErr SurveyError
	if As(err, &surveyErr) {
		return surveyErr.Severity()
	}
	return SeverityError
}

// UserMessage returns the text to show an operator for err: the service's
// reason for rejected commands, the error text for other user-facing errors,
// and a generic line otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rejected *CommandRejectedError
	if As(err, &rejected) {
		return rejected.Reason
	}
	if IsUserFacing(err) {
		return err.Error()
	}
	return "unexpected response from the service"
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
