package openai

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// IsTransient reports whether an API error is worth retrying: rate
// limiting, server-side failures, and network errors. Authentication
// and malformed-request failures are permanent.
func IsTransient(err error) bool {
	status, ok := apiStatus(err)
	if !ok {
		// No HTTP status: connection reset, timeout, DNS failure.
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// apiStatus extracts the HTTP status from go-openai error types.
func apiStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

// describeAPIError extracts a human-readable message from the API response.
func describeAPIError(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}
	return err.Error()
}
