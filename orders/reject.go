package orders

import (
	"fmt"
	"strings"
)

// RejectKind categorizes a business-rule rejection so it can be shown to
// the user with the right wording.
type RejectKind string

const (
	RejectInsufficientMargin RejectKind = "insufficient_margin"
	RejectVolumeStep         RejectKind = "invalid_volume_step"
	RejectVolumeRange        RejectKind = "volume_out_of_range"
	RejectValidation         RejectKind = "validation"
	RejectGeneric            RejectKind = "rejected"
)

// RejectError is a refusal from the backend, or from the local pre-submit
// checks that mirror it. Message is shown to the user verbatim.
type RejectError struct {
	Kind    RejectKind
	Code    string
	Message string
}

func (e *RejectError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// rejectCodes maps the backend's error codes to a kind.
var rejectCodes = map[string]RejectKind{
	"INSUFFICIENT_MARGIN":  RejectInsufficientMargin,
	"INSUFFICIENT_FUNDS":   RejectInsufficientMargin,
	"NOT_ENOUGH_MARGIN":    RejectInsufficientMargin,
	"INVALID_VOLUME_STEP":  RejectVolumeStep,
	"VOLUME_STEP":          RejectVolumeStep,
	"VOLUME_OUT_OF_RANGE":  RejectVolumeRange,
	"VOLUME_TOO_SMALL":     RejectVolumeRange,
	"VOLUME_TOO_LARGE":     RejectVolumeRange,
	"INVALID_VOLUME_RANGE": RejectVolumeRange,
	"VALIDATION_ERROR":     RejectValidation,
	"VALIDATION_FAILED":    RejectValidation,
	"INVALID_ARGUMENT":     RejectValidation,
	"422":                  RejectValidation,
}

// Classify picks a kind from the code first, then from the message text.
func Classify(code, message string) RejectKind {
	if k, ok := rejectCodes[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return k
	}

	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "margin"), strings.Contains(msg, "insufficient"):
		return RejectInsufficientMargin
	case strings.Contains(msg, "step"):
		return RejectVolumeStep
	case strings.Contains(msg, "volume") &&
		(strings.Contains(msg, "range") || strings.Contains(msg, "min") ||
			strings.Contains(msg, "max") || strings.Contains(msg, "exceed")):
		return RejectVolumeRange
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "required"),
		strings.Contains(msg, "validation"):
		return RejectValidation
	}
	return RejectGeneric
}

// Reject builds a RejectError with a classified kind.
func Reject(code, message string) *RejectError {
	return &RejectError{Kind: Classify(code, message), Code: code, Message: message}
}
