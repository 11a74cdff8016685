// internal/common/errors/handler.go
package errors

// ErrorHandler normalizes and logs failures that are isolated rather than propagated,
// such as a failed (keyword, range) pair or a failed category.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err with the given context fields and returns its normalized form.
// Malformed responses and API result errors are logged as errors, everything the
// retry policy could have absorbed as warnings.
func (h *ErrorHandler) Handle(msg string, err error, fields map[string]interface{}) *StandardError {
	stdErr := Normalize(err)
	if stdErr == nil {
		return nil
	}

	out := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		out[k] = v
	}
	out["errorCode"] = string(stdErr.Code)
	out["errorCategory"] = GetErrorCategory(stdErr.Code)
	out["message"] = stdErr.Message
	out["retryable"] = stdErr.Retryable
	if stdErr.Details != "" {
		out["details"] = stdErr.Details
	}
	for k, v := range stdErr.Metadata {
		out[k] = v
	}

	if stdErr.Retryable {
		h.logger.Warn(msg, out)
	} else {
		h.logger.Error(msg, out)
	}
	return stdErr
}
