package provider

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go/v3"
)

// ErrorDetail extracts the provider's structured error body when err
// wraps an SDK API error. The engines surface it alongside the message
// so the user can see what the provider actually said.
func ErrorDetail(err error) string {
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return aerr.RawJSON()
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		return oerr.RawJSON()
	}
	return ""
}

// ErrorStatusCode returns the HTTP status of an SDK API error, or 0.
func ErrorStatusCode(err error) int {
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return aerr.StatusCode
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		return oerr.StatusCode
	}
	return 0
}
