// Package errors provides the standardized error taxonomy of the harvest pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Data API
	ErrCodeTransientNetwork  ErrorCode = "TRANSIENT_NETWORK"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeAPIResult         ErrorCode = "API_RESULT_ERROR"

	// Remote store
	ErrCodeStoreDownloadFailed ErrorCode = "STORE_DOWNLOAD_FAILED"
	ErrCodeStoreUploadFailed   ErrorCode = "STORE_UPLOAD_FAILED"
	ErrCodeStoreSerialize      ErrorCode = "STORE_SERIALIZE_FAILED"
	ErrCodeLockUnavailable     ErrorCode = "LOCK_UNAVAILABLE"

	// Invocation
	ErrCodeUsage  ErrorCode = "USAGE_ERROR"
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// Optional sinks
	ErrCodeSinkFailed ErrorCode = "SINK_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	RetryAfter time.Duration          `json:"retryAfter,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Err        error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// Is matches any StandardError carrying the same code, so sentinels such as
// ErrMalformed work with errors.Is.
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns a copy of e carrying an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	cp := *e
	cp.Metadata = make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// Sentinels for errors.Is comparisons.
var (
	ErrTransient = &StandardError{Code: ErrCodeTransientNetwork}
	ErrRateLimit = &StandardError{Code: ErrCodeRateLimited}
	ErrMalformed = &StandardError{Code: ErrCodeMalformedResponse}
	ErrAPIResult = &StandardError{Code: ErrCodeAPIResult}
	ErrUsage     = &StandardError{Code: ErrCodeUsage}
	ErrConfig    = &StandardError{Code: ErrCodeConfig}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewTransientNetworkError wraps a connection failure, timeout or 5xx reply.
func NewTransientNetworkError(details string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientNetwork,
		Message:   "Transient network failure",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewRateLimitedError is returned for HTTP 429. retryAfter is zero when the
// server sent no usable hint.
func NewRateLimitedError(details string, retryAfter time.Duration) *StandardError {
	return &StandardError{
		Code:       ErrCodeRateLimited,
		Message:    "Request rate limited by data API",
		Details:    details,
		Retryable:  true,
		RetryAfter: retryAfter,
		Timestamp:  time.Now().UTC(),
	}
}

func NewMalformedResponseError(details string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "Malformed data API response",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewAPIResultError covers quota exhaustion, invalid keys and non-success result codes.
func NewAPIResultError(resultCode, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAPIResult,
		Message:   "Data API returned an error result",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"resultCode": resultCode},
		Timestamp: time.Now().UTC(),
	}
}

func NewStoreDownloadError(name string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreDownloadFailed,
		Message:   "Remote store download failed",
		Details:   fmt.Sprintf("name: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewStoreUploadError marks an upload failure; retryable reflects what the backend reported.
func NewStoreUploadError(name string, retryable bool, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUploadFailed,
		Message:   "Remote store upload failed",
		Details:   fmt.Sprintf("name: %s", name),
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func NewStoreSerializeError(name string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreSerialize,
		Message:   "Dataset serialization failed",
		Details:   fmt.Sprintf("name: %s", name),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func NewLockUnavailableError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLockUnavailable,
		Message:   "Dataset lock could not be acquired",
		Details:   fmt.Sprintf("key: %s", key),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func NewUsageError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUsage,
		Message:   "Invalid invocation",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigError(details string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfig,
		Message:   "Invalid configuration",
		Details:   details,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func NewSinkError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSinkFailed,
		Message:   fmt.Sprintf("Sink '%s' failed", sink),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures err is a StandardError, wrapping foreign errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// CodeOf returns the code of err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) {
		return false
	}
	return stdErr.Retryable
}

// RetryAfterHint returns the server-provided wait carried by err, if any.
func RetryAfterHint(err error) time.Duration {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) {
		return 0
	}
	return stdErr.RetryAfter
}

// IsRetryableErrorCode checks if an error code is retryable by default.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeTransientNetwork, ErrCodeRateLimited, ErrCodeSinkFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeTransientNetwork || code == ErrCodeRateLimited:
		return "transient"
	case code == ErrCodeMalformedResponse:
		return "malformed"
	case code == ErrCodeAPIResult:
		return "api"
	case strings.HasPrefix(codeStr, "STORE_") || code == ErrCodeLockUnavailable:
		return "store"
	case code == ErrCodeUsage || code == ErrCodeConfig:
		return "usage"
	case code == ErrCodeSinkFailed:
		return "sink"
	default:
		return "other"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
