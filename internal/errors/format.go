package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

func asBench(err error) *BenchError {
	var be *BenchError
	if errors.As(err, &be) {
		return be
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	be := asBench(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", be.Message))
	if be.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", be.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", be.Code))

	return sb.String()
}

type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	be := asBench(err)
	je := jsonError{
		Code:       be.Code,
		Message:    be.Message,
		Category:   string(be.Category),
		Severity:   string(be.Severity),
		Details:    be.Details,
		Suggestion: be.Suggestion,
		Retryable:  be.Retryable,
	}
	if be.Cause != nil {
		je.Cause = be.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var be *BenchError
	if !errors.As(err, &be) {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": be.Code,
		"message":    be.Message,
		"category":   string(be.Category),
		"severity":   string(be.Severity),
		"retryable":  be.Retryable,
	}
	if be.Cause != nil {
		result["cause"] = be.Cause.Error()
	}
	if be.Suggestion != "" {
		result["suggestion"] = be.Suggestion
	}
	for k, v := range be.Details {
		result["detail_"+k] = v
	}

	return result
}

// LogAttrs flattens FormatForLog into an slog-style argument list.
func LogAttrs(err error) []any {
	fields := FormatForLog(err)
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return attrs
}
