package awsclient

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Sentinel errors for AWS service failures that callers may want to surface.
var (
	ErrThrottled        = errors.New("request throttled")
	ErrResourceNotFound = errors.New("resource not found")
	ErrAccessDenied     = errors.New("access denied")
	ErrUnavailable      = errors.New("service unavailable")
)

// ErrorInfo maps a sentinel error to its HTTP status and error code.
type ErrorInfo struct {
	Status int
	Code   string
}

var errorMap = map[error]ErrorInfo{
	ErrThrottled:        {Status: 429, Code: "TOO_MANY_REQUESTS"},
	ErrResourceNotFound: {Status: 503, Code: "STORE_UNAVAILABLE"},
	ErrAccessDenied:     {Status: 503, Code: "STORE_UNAVAILABLE"},
	ErrUnavailable:      {Status: 503, Code: "STORE_UNAVAILABLE"},
}

// LookupError checks if the given error matches any known AWS sentinel error
// and returns the corresponding ErrorInfo. Returns false if no match.
func LookupError(err error) (ErrorInfo, bool) {
	for sentinel, info := range errorMap {
		if errors.Is(err, sentinel) {
			return info, true
		}
	}
	return ErrorInfo{}, false
}

// MapError attaches a sentinel to well-known AWS API errors. The original
// error stays in the chain so errors.As against SDK types keeps working.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "ProvisionedThroughputExceededException", "ThrottlingException",
		"RequestLimitExceeded", "SlowDown", "TooManyRequestsException":
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	case "ResourceNotFoundException", "NoSuchBucket":
		return fmt.Errorf("%w: %w", ErrResourceNotFound, err)
	case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException":
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case "InternalServerError", "ServiceUnavailable", "InternalError":
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

// ErrorCode returns the AWS API error code in err's chain, or "" if none.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
